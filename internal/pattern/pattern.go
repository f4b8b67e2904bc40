// Package pattern characterizes how failures are distributed across an
// ordered sequence of evaluation records.
package pattern

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DominanceThreshold is the share of failures one third of the scope must
// hold for the region to be named after it instead of "spread".
const DominanceThreshold = 0.6

// ErrContractViolation is returned when Analyze receives positions that are
// not strictly increasing or fall outside [1, total].
var ErrContractViolation = errors.New("pattern: contract violation")

// Region is the qualitative location where failures concentrate.
// The zero value means no region is defined (no failures).
type Region string

const (
	RegionBeginning Region = "beginning"
	RegionMiddle    Region = "middle"
	RegionEnd       Region = "end"
	RegionSpread    Region = "spread"
)

// Defined reports whether the region has a value.
func (r Region) Defined() bool {
	return r != ""
}

// MarshalJSON encodes an undefined region as null.
func (r Region) MarshalJSON() ([]byte, error) {
	if !r.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON decodes null into the undefined region.
func (r *Region) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Region(s)
	return nil
}

// Summary describes the failure layout of one scope (a category or the whole dataset).
type Summary struct {
	// AvgGap is the mean distance between consecutive failures; nil with fewer than two.
	AvgGap *float64 `json:"avg_gap" yaml:"avg_gap"`
	// Gaps holds the differences between consecutive failure positions.
	Gaps []int `json:"gaps" yaml:"gaps"`
	// Region is where failures concentrate; undefined with no failures.
	Region Region `json:"region" yaml:"region"`
	// LongestStreak is the longest run of consecutive failure positions.
	LongestStreak int `json:"longest_streak" yaml:"longest_streak"`
}

// Empty returns the summary of a scope without failures.
func Empty() Summary {
	return Summary{Gaps: []int{}}
}

// Analyze summarizes failure positions within a scope of totalCount records.
// Positions are 1-based and must be strictly increasing within [1, totalCount].
// Callers substitute totalCount = 1 for an empty scope.
func Analyze(failPositions []int, totalCount int) (Summary, error) {
	if err := validate(failPositions, totalCount); err != nil {
		return Summary{}, err
	}
	if len(failPositions) == 0 {
		return Empty(), nil
	}

	gaps := make([]int, 0, len(failPositions)-1)
	for i := 1; i < len(failPositions); i++ {
		gaps = append(gaps, failPositions[i]-failPositions[i-1])
	}

	s := Summary{
		Gaps:          gaps,
		Region:        classify(failPositions, totalCount),
		LongestStreak: longestStreak(gaps),
	}
	if len(gaps) > 0 {
		sum := 0
		for _, g := range gaps {
			sum += g
		}
		avg := float64(sum) / float64(len(gaps))
		s.AvgGap = &avg
	}
	return s, nil
}

// classify buckets positions into thirds of [1, total]. Positions exactly on
// a boundary belong to the lower bucket.
func classify(positions []int, total int) Region {
	third := float64(total) / 3.0

	var counts [3]int
	for _, p := range positions {
		fp := float64(p)
		switch {
		case fp <= third:
			counts[0]++
		case fp <= 2*third:
			counts[1]++
		default:
			counts[2]++
		}
	}

	regions := [3]Region{RegionBeginning, RegionMiddle, RegionEnd}
	dominant := 0
	for i := 1; i < len(counts); i++ {
		// Strict comparison keeps the earliest bucket on ties.
		if counts[i] > counts[dominant] {
			dominant = i
		}
	}

	if float64(counts[dominant])/float64(len(positions)) >= DominanceThreshold {
		return regions[dominant]
	}
	return RegionSpread
}

func longestStreak(gaps []int) int {
	longest, current := 1, 1
	for _, g := range gaps {
		if g == 1 {
			current++
			longest = max(longest, current)
		} else {
			current = 1
		}
	}
	return longest
}

func validate(positions []int, total int) error {
	if total < 0 {
		return fmt.Errorf("%w: negative total count %d", ErrContractViolation, total)
	}
	if len(positions) > 0 && total < 1 {
		return fmt.Errorf("%w: total count %d with %d failures", ErrContractViolation, total, len(positions))
	}
	prev := 0
	for i, p := range positions {
		if p < 1 || p > total {
			return fmt.Errorf("%w: position %d at index %d outside [1, %d]", ErrContractViolation, p, i, total)
		}
		if p <= prev {
			return fmt.Errorf("%w: position %d at index %d not greater than %d", ErrContractViolation, p, i, prev)
		}
		prev = p
	}
	return nil
}

// MarshalYAML encodes an undefined region as null.
func (r Region) MarshalYAML() (any, error) {
	if !r.Defined() {
		return nil, nil
	}
	return string(r), nil
}
