package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMonths parses a month list such as "7,8,9" or "7-12", optionally
// mixed ("6,7-9,10"). Ranges are inclusive and months must be 1..12; order
// and duplicates are preserved so season lists like "11,12,1,2" keep their
// wrap semantics.
func ParseMonths(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var out []int
	add := func(v int) error {
		if v < 1 || v > 12 {
			return fmt.Errorf("month must be 1..12 (got %d)", v)
		}
		out = append(out, v)
		return nil
	}

	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.Count(p, "-") == 1 && !strings.HasPrefix(p, "-") {
			ab := strings.Split(p, "-")
			a, err := strconv.Atoi(strings.TrimSpace(ab[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid month range start %q: %w", ab[0], err)
			}
			b, err := strconv.Atoi(strings.TrimSpace(ab[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid month range end %q: %w", ab[1], err)
			}
			if a > b {
				return nil, fmt.Errorf("invalid month range %q: start > end", p)
			}
			for i := a; i <= b; i++ {
				if err := add(i); err != nil {
					return nil, err
				}
			}
			continue
		}

		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid month %q: %w", p, err)
		}
		if err := add(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}
