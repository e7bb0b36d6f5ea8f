package marketing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is the ordered three-step scale used to rate channels.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// ParseLevel accepts any casing of Low, Medium or High.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LevelLow, nil
	case "medium", "med":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// Rank orders levels Low < Medium < High. Unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	}
	return 0
}

// UnmarshalJSON normalises casing; unknown words are kept verbatim so that
// validation reports them against the field.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if parsed, err := ParseLevel(s); err == nil {
		*l = parsed
		return nil
	}
	*l = Level(s)
	return nil
}
