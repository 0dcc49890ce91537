package container

import (
	"encoding/json"
	"fmt"
)

// EffectKind names one of the tagged-union variants carried by
// play_settings.json's "effects" array.
type EffectKind string

const (
	KindConvolutionReverb EffectKind = "ConvolutionReverbSettings"
	KindDelayReverb       EffectKind = "DelayReverbSettings"
	KindBasicReverb       EffectKind = "BasicReverbSettings" // deprecated alias of DelayReverb
	KindDiffusionReverb   EffectKind = "DiffusionReverbSettings"
	KindLowPassFilter     EffectKind = "LowPassFilterSettings"
	KindHighPassFilter    EffectKind = "HighPassFilterSettings"
	KindDistortion        EffectKind = "DistortionSettings"
	KindCompressor        EffectKind = "CompressorSettings"
	KindLimiter           EffectKind = "LimiterSettings"
	KindMultibandEQ       EffectKind = "MultibandEqSettings"
)

// EffectSpec is the normalized, Go-native form of one AudioEffect entry.
// Exactly one of the typed fields is populated, selected by Kind.
type EffectSpec struct {
	Kind EffectKind

	ConvolutionReverb *ConvolutionReverbSpec
	DelayReverb       *DelayReverbSpec
	DiffusionReverb   *DiffusionReverbSpec
	LowPass           *BiquadSpec
	HighPass          *BiquadSpec
	Distortion        *DistortionSpec
	Compressor        *CompressorSpec
	Limiter           *LimiterSpec
	MultibandEQ       *MultibandEQSpec
}

type ConvolutionReverbSpec struct {
	ImpulseResponse       string
	ImpulseResponseTailDB float64
	DryWet                float64
	Enabled               *bool
}

// UnmarshalJSON accepts the canonical "dry_wet" wet/dry field under its
// historical aliases too, the same aliasing the encoder applied when the
// field was renamed.
func (s *ConvolutionReverbSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		ImpulseResponse       string   `json:"impulse_response"`
		ImpulseResponseTailDB float64  `json:"impulse_response_tail_db"`
		DryWet                *float64 `json:"dry_wet"`
		WetDry                *float64 `json:"wet_dry"`
		Mix                   *float64 `json:"mix"`
		Enabled               *bool    `json:"enabled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ImpulseResponse = raw.ImpulseResponse
	s.ImpulseResponseTailDB = raw.ImpulseResponseTailDB
	s.Enabled = raw.Enabled
	switch {
	case raw.DryWet != nil:
		s.DryWet = *raw.DryWet
	case raw.WetDry != nil:
		s.DryWet = *raw.WetDry
	case raw.Mix != nil:
		s.DryWet = *raw.Mix
	}
	return nil
}

type DelayReverbSpec struct {
	DurationMS float64 `json:"duration_ms"`
	Amplitude  float64 `json:"amplitude"`
	Enabled    *bool   `json:"enabled"`
}

type DiffusionReverbSpec struct {
	PreDelayMS float64 `json:"pre_delay_ms"`
	RoomSizeMS float64 `json:"room_size_ms"`
	Decay      float64 `json:"decay"`
	Damping    float64 `json:"damping"`
	Diffusion  float64 `json:"diffusion"`
	Enabled    *bool   `json:"enabled"`
}

type BiquadSpec struct {
	FreqHz  float64 `json:"freq_hz"`
	Q       float64 `json:"q"`
	Enabled *bool   `json:"enabled"`
}

type DistortionSpec struct {
	Gain      float64 `json:"gain"`
	Threshold float64 `json:"threshold"`
	Enabled   *bool   `json:"enabled"`
}

type CompressorSpec struct {
	ThresholdDB float64 `json:"threshold_db"`
	Ratio       float64 `json:"ratio"`
	AttackMS    float64 `json:"attack_ms"`
	ReleaseMS   float64 `json:"release_ms"`
	MakeupDB    float64 `json:"makeup_db"`
	Enabled     *bool   `json:"enabled"`
}

type LimiterSpec struct {
	ThresholdDB float64 `json:"threshold_db"`
	KneeDB      float64 `json:"knee_db"`
	AttackMS    float64 `json:"attack_ms"`
	ReleaseMS   float64 `json:"release_ms"`
	Enabled     *bool   `json:"enabled"`
}

type EQPointSpec struct {
	FreqHz float64 `json:"freq_hz"`
	Q      float64 `json:"q"`
	GainDB float64 `json:"gain_db"`
}

// EQEdgeSpec configures one optional edge filter of the multiband EQ:
// "pass" selects a hard high-pass (low edge) or low-pass (high edge) cut,
// "shelf" a low/high shelf with gain_db.
type EQEdgeSpec struct {
	Kind   string  `json:"kind"`
	FreqHz float64 `json:"freq_hz"`
	GainDB float64 `json:"gain_db"`
}

type MultibandEQSpec struct {
	Points   []EQPointSpec `json:"points"`
	LowEdge  *EQEdgeSpec   `json:"low_edge"`
	HighEdge *EQEdgeSpec   `json:"high_edge"`
	Enabled  *bool         `json:"enabled"`
}

// Enabled reports whether the parsed entry is active. A missing "enabled"
// field means active, matching the encoder's default.
func (s EffectSpec) Enabled() bool {
	var e *bool
	switch s.Kind {
	case KindConvolutionReverb:
		if s.ConvolutionReverb != nil {
			e = s.ConvolutionReverb.Enabled
		}
	case KindDelayReverb:
		if s.DelayReverb != nil {
			e = s.DelayReverb.Enabled
		}
	case KindDiffusionReverb:
		if s.DiffusionReverb != nil {
			e = s.DiffusionReverb.Enabled
		}
	case KindLowPassFilter:
		if s.LowPass != nil {
			e = s.LowPass.Enabled
		}
	case KindHighPassFilter:
		if s.HighPass != nil {
			e = s.HighPass.Enabled
		}
	case KindDistortion:
		if s.Distortion != nil {
			e = s.Distortion.Enabled
		}
	case KindCompressor:
		if s.Compressor != nil {
			e = s.Compressor.Enabled
		}
	case KindLimiter:
		if s.Limiter != nil {
			e = s.Limiter.Enabled
		}
	case KindMultibandEQ:
		if s.MultibandEQ != nil {
			e = s.MultibandEQ.Enabled
		}
	}
	return e == nil || *e
}

// ParseEffectSpecsJSON parses a standalone JSON array of effect entries, in
// the same tagged-union shape play_settings.json carries under "effects".
// It is what the --effects-json override flag loads.
func ParseEffectSpecsJSON(data []byte) ([]EffectSpec, error) {
	var raw []rawEffect
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("container: effects-json: %w", err)
	}
	specs := make([]EffectSpec, 0, len(raw))
	for _, re := range raw {
		spec, err := re.toSpec()
		if err != nil {
			return nil, fmt.Errorf("container: effects-json: %w", err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// rawEffect is the wire shape of one externally-tagged union entry: a
// single-key object whose key is the variant name and whose value holds
// the variant's own fields, e.g. {"ConvolutionReverbSettings": {...}}.
type rawEffect struct {
	Tag  string
	Body json.RawMessage
}

// UnmarshalJSON captures the outer variant key and its payload so toSpec
// can decode the payload into the right typed struct.
func (r *rawEffect) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("container: effect entry must be a single-variant object, got %d keys", len(m))
	}
	for tag, body := range m {
		r.Tag = tag
		r.Body = body
	}
	return nil
}

func (r rawEffect) toSpec() (EffectSpec, error) {
	kind := EffectKind(r.Tag)
	if kind == KindBasicReverb {
		kind = KindDelayReverb
	}
	spec := EffectSpec{Kind: kind}
	switch kind {
	case KindConvolutionReverb:
		var v ConvolutionReverbSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.ConvolutionReverb = &v
	case KindDelayReverb:
		var v DelayReverbSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.DelayReverb = &v
	case KindDiffusionReverb:
		var v DiffusionReverbSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.DiffusionReverb = &v
	case KindLowPassFilter:
		var v BiquadSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.LowPass = &v
	case KindHighPassFilter:
		var v BiquadSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.HighPass = &v
	case KindDistortion:
		var v DistortionSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.Distortion = &v
	case KindCompressor:
		var v CompressorSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.Compressor = &v
	case KindLimiter:
		var v LimiterSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.Limiter = &v
	case KindMultibandEQ:
		var v MultibandEQSpec
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return spec, err
		}
		spec.MultibandEQ = &v
	default:
		return spec, fmt.Errorf("container: unknown effect type %q", r.Tag)
	}
	return spec, nil
}
