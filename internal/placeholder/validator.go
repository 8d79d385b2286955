package placeholder

import (
	"fmt"
	"sort"
	"strings"
)

// Report describes how a translated text's placeholder set deviates
// from the expected 0..k-1 local numbering. It feeds the retry
// guidance prompt; it has no effect on control flow beyond pass/fail.
type Report struct {
	ExpectedCount int
	Found         []int // appearance order, duplicates included
	Missing       []int
	Duplicated    []int
	OutOfOrder    []int
	CountMismatch bool
	// WrongIndices is set when the count matches but the index set is
	// not 0..k-1, which usually means the model shifted every number.
	WrongIndices bool
}

// OK reports whether the placeholder set is acceptable: every index
// 0..k-1 present exactly once, in any order.
func (r *Report) OK() bool {
	return !r.CountMismatch && !r.WrongIndices && len(r.Missing) == 0 && len(r.Duplicated) == 0
}

// StrictOK additionally requires the indices to appear in ascending
// order, matching the first-appearance order of the original.
func (r *Report) StrictOK() bool {
	return r.OK() && len(r.OutOfOrder) == 0
}

// Summary renders the report as guidance for the next attempt's
// prompt.
func (r *Report) Summary() string {
	if r.OK() && len(r.OutOfOrder) == 0 {
		return "all placeholders present"
	}
	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing placeholders: %s", joinInts(r.Missing)))
	}
	if len(r.Duplicated) > 0 {
		parts = append(parts, fmt.Sprintf("duplicated placeholders: %s", joinInts(r.Duplicated)))
	}
	if r.WrongIndices {
		parts = append(parts, fmt.Sprintf("wrong placeholder numbers used (expected 0..%d)", r.ExpectedCount-1))
	}
	if r.CountMismatch {
		parts = append(parts, fmt.Sprintf("expected %d placeholders, found %d", r.ExpectedCount, len(r.Found)))
	}
	if len(r.OutOfOrder) > 0 {
		parts = append(parts, fmt.Sprintf("placeholders out of order: %s", joinInts(r.OutOfOrder)))
	}
	return strings.Join(parts, "; ")
}

// Validate reports whether translated contains exactly the placeholder
// set of expected (indices 0..expected.Len()-1, each exactly once).
// When strict is set, the indices must also appear in ascending order.
func Validate(translated string, expected *TagMap, strict bool) bool {
	r := Diagnose(translated, expected.Len(), expected.Format())
	if strict {
		return r.StrictOK()
	}
	return r.OK()
}

// Diagnose analyzes the placeholder set of translated against an
// expected count and returns a full deviation report.
func Diagnose(translated string, expectedCount int, f Format) *Report {
	found := Indices(translated, f)
	r := &Report{ExpectedCount: expectedCount, Found: found}

	seen := make(map[int]int, len(found))
	for _, idx := range found {
		seen[idx]++
	}

	for i := 0; i < expectedCount; i++ {
		switch seen[i] {
		case 0:
			r.Missing = append(r.Missing, i)
		case 1:
		default:
			r.Duplicated = append(r.Duplicated, i)
		}
	}

	if len(found) != expectedCount {
		r.CountMismatch = true
	} else if len(r.Missing) > 0 {
		// Count matches but the set differs: the model used shifted or
		// invented numbers.
		r.WrongIndices = true
	}

	for i := 1; i < len(found); i++ {
		if found[i] < found[i-1] {
			r.OutOfOrder = append(r.OutOfOrder, found[i])
		}
	}

	return r
}

func joinInts(values []int) string {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
