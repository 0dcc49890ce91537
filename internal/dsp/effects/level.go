// Package effects implements the individual algorithmic DSP effects:
// biquad filters, compressor, limiter, delay reverb, diffusion reverb,
// distortion, gain, and the multiband EQ built from peaking biquads. Every
// effect satisfies the Effect interface in context.go; chain.Chain calls it
// once per effect per chunk, with no type switch.
package effects

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DBOrLinear unmarshals either a bare JSON number (treated as a linear
// gain factor) or a string like "6db"/"-3dB" (treated as decibels and
// converted to linear on parse). This mirrors the container format's
// dual-form gain fields.
type DBOrLinear float64

func (g *DBOrLinear) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*g = DBOrLinear(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("effects: gain value %s is neither a number nor a db string", data)
	}
	trimmed := strings.TrimSpace(strings.ToLower(s))
	if !strings.HasSuffix(trimmed, "db") {
		return fmt.Errorf("effects: gain string %q missing db suffix", s)
	}
	num := strings.TrimSpace(strings.TrimSuffix(trimmed, "db"))
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return fmt.Errorf("effects: invalid db value %q: %w", s, err)
	}
	*g = DBOrLinear(DBToLinear(v))
	return nil
}

// DBToLinear converts decibels to a linear amplitude factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear amplitude factor to decibels, floored at a
// small epsilon to avoid -Inf for a silent signal.
func LinearToDB(v float64) float64 {
	const eps = 1e-9
	if v < eps {
		v = eps
	}
	return 20 * math.Log10(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
