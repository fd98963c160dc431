package evaluation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/think/internal/criteria"
)

// Evaluation is one scored message. It is never edited after Save; the only
// field that changes is CanDelete, which is derived from Timestamp.
type Evaluation struct {
	ID         string       `json:"id" yaml:"id"`
	Text       string       `json:"text" yaml:"text"`
	Criteria   criteria.Set `json:"criteria" yaml:"criteria"`
	Percentage int          `json:"percentage" yaml:"percentage"`
	Timestamp  time.Time    `json:"timestamp" yaml:"timestamp"`
	CanDelete  bool         `json:"canDelete" yaml:"can_delete"`
}

// Band returns the verdict for the stored percentage.
func (e Evaluation) Band() criteria.Band {
	return criteria.BandFor(e.Percentage)
}

// DeleteOutcome reports what Delete did. None of the outcomes is an error.
type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota
	Protected
	NotFound
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case Protected:
		return "protected"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// ClearResult reports how many records ClearDeletable removed and kept.
type ClearResult struct {
	Deleted   int `json:"deleted"`
	Protected int `json:"protected"`
}

// encodeList serializes evaluations newest first.
func encodeList(list []Evaluation) (string, error) {
	if list == nil {
		list = []Evaluation{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshalling evaluations: %w", err)
	}
	return string(b), nil
}

// decodeList parses a stored list, skipping records that cannot be parsed or
// fail validation. It only errors if the blob is not a JSON array at all.
func decodeList(raw string, logger *slog.Logger) ([]Evaluation, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parsing evaluation list: %w", err)
	}

	out := make([]Evaluation, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		var e Evaluation
		if err := json.Unmarshal(item, &e); err != nil {
			logger.Warn("malformed evaluation, skipping", "index", i, "error", err)
			continue
		}
		if err := validate(e); err != nil {
			logger.Warn("invalid evaluation, skipping", "index", i, "id", e.ID, "error", err)
			continue
		}
		if seen[e.ID] {
			logger.Warn("duplicate evaluation id, skipping", "index", i, "id", e.ID)
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out, nil
}

func validate(e Evaluation) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("missing id")
	case e.Timestamp.IsZero():
		return fmt.Errorf("missing timestamp")
	case e.Percentage < 0 || e.Percentage > 100:
		return fmt.Errorf("percentage %d out of range", e.Percentage)
	}
	return nil
}
