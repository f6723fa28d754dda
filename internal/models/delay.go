package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Supported delay types
const (
	DelayFixed   = "fixed"
	DelayRandom  = "random"
	DelayNetwork = "network"
)

// Delay describes how long to wait before responding.
// It is either a bare number of milliseconds or a {type, min, max} object.
type Delay struct {
	Type string
	Min  int
	Max  int

	// Millis holds the bare numeric form.
	Millis  int
	numeric bool
}

// FixedDelay returns a bare numeric delay
func FixedDelay(ms int) *Delay {
	return &Delay{Millis: ms, numeric: true}
}

// IsNumeric reports whether the delay was given as a bare number.
func (d *Delay) IsNumeric() bool {
	return d.numeric
}

// NormalizedType returns the lowercased delay type, defaulting to fixed.
func (d *Delay) NormalizedType() string {
	t := strings.ToLower(strings.TrimSpace(d.Type))
	if t == "" {
		return DelayFixed
	}
	return t
}

func (d *Delay) UnmarshalJSON(data []byte) error {
	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.Type == gjson.Number:
		*d = Delay{Millis: int(parsed.Int()), numeric: true}
		return nil
	case parsed.IsObject():
		var raw struct {
			Type string `json:"type"`
			Min  *int   `json:"min"`
			Max  *int   `json:"max"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid delay: %w", err)
		}
		*d = Delay{Type: raw.Type, Min: 0, Max: 1000}
		if d.Type == "" {
			d.Type = DelayFixed
		}
		if raw.Min != nil {
			d.Min = *raw.Min
		}
		if raw.Max != nil {
			d.Max = *raw.Max
		}
		return nil
	default:
		return fmt.Errorf("delay must be a number or an object, got %s", parsed.Type)
	}
}

func (d Delay) MarshalJSON() ([]byte, error) {
	if d.numeric {
		return json.Marshal(d.Millis)
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Min  int    `json:"min"`
		Max  int    `json:"max"`
	}{d.Type, d.Min, d.Max})
}
