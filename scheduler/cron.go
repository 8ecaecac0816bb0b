// Package scheduler computes cron fire times and drives the daemon's
// run loop. The parser is adapted from
// cartographus/internal/newsletter/scheduler: standard 5-field
// minute/hour/day-of-month/month/day-of-week syntax with *, n, n-m,
// n,m,o and step forms. Day-of-week is pinned to 0-6, so unlike
// cartographus there is no day-7-means-Sunday normalization.
package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// Schedule is a parsed cron expression.
type Schedule struct {
	Minutes     []int
	Hours       []int
	DaysOfMonth []int
	Months      []int
	DaysOfWeek  []int
}

// ParseCron parses a standard 5-field cron expression.
func ParseCron(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", vaultcron.ErrInvalidCron, len(fields))
	}

	minutes, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("%w: minute: %v", vaultcron.ErrInvalidCron, err)
	}
	hours, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("%w: hour: %v", vaultcron.ErrInvalidCron, err)
	}
	dom, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("%w: day-of-month: %v", vaultcron.ErrInvalidCron, err)
	}
	months, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("%w: month: %v", vaultcron.ErrInvalidCron, err)
	}
	dow, err := parseField(fields[4], 0, 6)
	if err != nil {
		return nil, fmt.Errorf("%w: day-of-week: %v", vaultcron.ErrInvalidCron, err)
	}

	return &Schedule{
		Minutes:     minutes,
		Hours:       hours,
		DaysOfMonth: dom,
		Months:      months,
		DaysOfWeek:  dow,
	}, nil
}

// Next returns the first minute strictly after `after` (in UTC) that
// matches the schedule. Search is capped at four years out, matching
// cartographus's own bound, since a well-formed expression always
// matches well within that window.
func (s *Schedule) Next(after time.Time) time.Time {
	t := after.UTC()
	t = t.Add(time.Minute).Truncate(time.Minute)

	const maxIterations = 365 * 24 * 60 * 4
	for i := 0; i < maxIterations; i++ {
		if s.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (s *Schedule) matches(t time.Time) bool {
	if !containsInt(s.Minutes, t.Minute()) {
		return false
	}
	if !containsInt(s.Hours, t.Hour()) {
		return false
	}
	if !containsInt(s.Months, int(t.Month())) {
		return false
	}

	domMatch := containsInt(s.DaysOfMonth, t.Day())
	dowMatch := containsInt(s.DaysOfWeek, int(t.Weekday()))
	domWildcard := len(s.DaysOfMonth) == 31
	dowWildcard := len(s.DaysOfWeek) == 7

	switch {
	case domWildcard && dowWildcard:
		return true
	case domWildcard:
		return dowMatch
	case dowWildcard:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

func parseField(field string, minVal, maxVal int) ([]int, error) {
	if field == "*" {
		return rangeInts(minVal, maxVal), nil
	}
	if strings.Contains(field, ",") {
		var result []int
		for _, part := range strings.Split(field, ",") {
			values, err := parseFieldPart(part, minVal, maxVal)
			if err != nil {
				return nil, err
			}
			result = append(result, values...)
		}
		return uniqueSorted(result), nil
	}
	return parseFieldPart(field, minVal, maxVal)
}

func parseFieldPart(part string, minVal, maxVal int) ([]int, error) {
	if strings.Contains(part, "/") {
		halves := strings.SplitN(part, "/", 2)
		step, err := strconv.Atoi(halves[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step %q", halves[1])
		}

		var start, end int
		switch {
		case halves[0] == "*":
			start, end = minVal, maxVal
		case strings.Contains(halves[0], "-"):
			start, end, err = parseRangeBounds(halves[0], minVal, maxVal)
			if err != nil {
				return nil, err
			}
		default:
			start, err = strconv.Atoi(halves[0])
			if err != nil {
				return nil, fmt.Errorf("invalid value %q", halves[0])
			}
			end = maxVal
		}

		var result []int
		for i := start; i <= end; i += step {
			if i >= minVal && i <= maxVal {
				result = append(result, i)
			}
		}
		return result, nil
	}

	if strings.Contains(part, "-") {
		start, end, err := parseRangeBounds(part, minVal, maxVal)
		if err != nil {
			return nil, err
		}
		return rangeInts(start, end), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", part)
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value out of range: %d (%d-%d)", val, minVal, maxVal)
	}
	return []int{val}, nil
}

func parseRangeBounds(s string, minVal, maxVal int) (int, int, error) {
	halves := strings.SplitN(s, "-", 2)
	start, err := strconv.Atoi(halves[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q", halves[0])
	}
	end, err := strconv.Atoi(halves[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end %q", halves[1])
	}
	if start > end || start < minVal || end > maxVal {
		return 0, 0, fmt.Errorf("invalid range %d-%d (bounds %d-%d)", start, end, minVal, maxVal)
	}
	return start, end, nil
}

func rangeInts(start, end int) []int {
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func uniqueSorted(s []int) []int {
	seen := make(map[int]bool, len(s))
	var result []int
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	sort.Ints(result)
	return result
}
