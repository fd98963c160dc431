// Package export writes the evaluation history in portable formats.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/think/internal/evaluation"
	"github.com/kalambet/think/internal/progression"
)

type Format string

const (
	JSONL Format = "jsonl"
	YAML  Format = "yaml"
)

// ParseFormat accepts "jsonl" or "yaml" ("yml" too), case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jsonl":
		return JSONL, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want jsonl or yaml)", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == YAML {
		return "application/yaml"
	}
	return "application/x-ndjson"
}

// Document is a complete snapshot of local data.
type Document struct {
	ExportedAt  time.Time               `yaml:"exported_at"`
	Evaluations []evaluation.Evaluation `yaml:"evaluations"`
	Progression progression.State       `yaml:"progression"`
}

// Write encodes doc to w. JSONL carries one evaluation per line, newest
// first; YAML carries the whole document.
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case JSONL:
		return writeJSONL(w, doc.Evaluations)
	case YAML:
		return writeYAML(w, doc)
	}
	return fmt.Errorf("unknown export format %q", f)
}

func writeJSONL(w io.Writer, evals []evaluation.Evaluation) error {
	enc := json.NewEncoder(w)
	for _, e := range evals {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("writing evaluation %s: %w", e.ID, err)
		}
	}
	return nil
}

func writeYAML(w io.Writer, doc Document) error {
	if doc.Evaluations == nil {
		doc.Evaluations = []evaluation.Evaluation{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing yaml export: %w", err)
	}
	return enc.Close()
}
