package criteria

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
)

// Key names one of the five T.H.I.N.K. questions.
type Key string

const (
	True      Key = "true"
	Helpful   Key = "helpful"
	Important Key = "important"
	Necessary Key = "necessary"
	Kind      Key = "kind"
)

// Keys lists the criteria in display order.
var Keys = []Key{True, Helpful, Important, Necessary, Kind}

// Total is the number of criteria in a Set.
const Total = 5

var labels = map[Key]string{
	True:      "True",
	Helpful:   "Helpful",
	Important: "Important",
	Necessary: "Necessary",
	Kind:      "Kind",
}

var descriptions = map[Key]string{
	True:      "Is it factually accurate and honest?",
	Helpful:   "Will it help or benefit someone?",
	Important: "Does it matter in the bigger picture?",
	Necessary: "Does it need to be said right now?",
	Kind:      "Is it compassionate and considerate?",
}

// Label returns the display label for k.
func Label(k Key) string { return labels[k] }

// Description returns the question asked for k.
func Description(k Key) string { return descriptions[k] }

// Set holds the answers to the five questions for one evaluation.
type Set struct {
	True      bool `json:"true" yaml:"true"`
	Helpful   bool `json:"helpful" yaml:"helpful"`
	Important bool `json:"important" yaml:"important"`
	Necessary bool `json:"necessary" yaml:"necessary"`
	Kind      bool `json:"kind" yaml:"kind"`
}

// Get returns the answer for k. Unknown keys report false.
func (s Set) Get(k Key) bool {
	switch k {
	case True:
		return s.True
	case Helpful:
		return s.Helpful
	case Important:
		return s.Important
	case Necessary:
		return s.Necessary
	case Kind:
		return s.Kind
	}
	return false
}

// With returns a copy of s with k set to v. Unknown keys leave s unchanged.
func (s Set) With(k Key, v bool) Set {
	switch k {
	case True:
		s.True = v
	case Helpful:
		s.Helpful = v
	case Important:
		s.Important = v
	case Necessary:
		s.Necessary = v
	case Kind:
		s.Kind = v
	}
	return s
}

// Count returns the number of satisfied criteria.
func (s Set) Count() int {
	n := 0
	for _, k := range Keys {
		if s.Get(k) {
			n++
		}
	}
	return n
}

// Score returns the percentage of satisfied criteria for s.
func Score(s Set) int {
	return Percentage(s.Count())
}

// Percentage converts a satisfied-criteria count into a whole percentage.
// Counts outside [0, Total] are clamped. Halves round up; with five criteria
// every result is already exact, so the rounding mode only matters if Total
// changes.
func Percentage(count int) int {
	if count < 0 {
		count = 0
	}
	if count > Total {
		count = Total
	}
	return int(math.Round(100 * float64(count) / Total))
}

// ParseSet decodes a criteria object that carries exactly the five keys, each
// with a boolean value. Unknown, missing and null keys are errors.
func ParseSet(data []byte) (Set, error) {
	var raw map[string]*bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return Set{}, fmt.Errorf("criteria: %w", err)
	}
	if raw == nil {
		return Set{}, fmt.Errorf("criteria must be an object")
	}

	for _, k := range slices.Sorted(maps.Keys(raw)) {
		if _, ok := labels[Key(k)]; !ok {
			return Set{}, fmt.Errorf("unknown criterion %q", k)
		}
	}

	var s Set
	for _, k := range Keys {
		v, ok := raw[string(k)]
		if !ok {
			return Set{}, fmt.Errorf("missing criterion %q", k)
		}
		if v == nil {
			return Set{}, fmt.Errorf("criterion %q must be true or false", k)
		}
		s = s.With(k, *v)
	}
	return s, nil
}
