package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// PatternList is the set of dump key patterns a run indexed, e.g. "^inetnum".
// It is stored as a sorted JSON array.
type PatternList []string

func (p PatternList) Value() (driver.Value, error) {
	normalized := make([]string, 0, len(p))
	for _, pattern := range p {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			normalized = append(normalized, pattern)
		}
	}
	slices.Sort(normalized)
	return json.Marshal(slices.Compact(normalized))
}

func (p *PatternList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("domain.PatternList: unsupported type %T", value)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}

	var parsed []string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("domain.PatternList: %w", err)
	}
	*p = parsed
	return nil
}
