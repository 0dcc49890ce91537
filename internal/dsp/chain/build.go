package chain

import (
	"github.com/proteus-audio/proteus/internal/container"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
)

// Build turns a parsed effect chain specification into live Effect
// instances wired into a new Chain. irLoader resolves convolution reverb's
// impulse-response spec strings; it may be nil if the session has no IR.
func Build(specs []container.EffectSpec, irLoader effects.IRLoader) *Chain {
	fx := make([]effects.Effect, 0, len(specs))
	for _, s := range specs {
		if e := buildOne(s, irLoader); e != nil {
			fx = append(fx, e)
		}
	}
	return New(fx)
}

func buildOne(s container.EffectSpec, irLoader effects.IRLoader) effects.Effect {
	// A disabled entry never enters the chain, so it is exactly the
	// identity on the signal.
	if !s.Enabled() {
		return nil
	}
	switch s.Kind {
	case container.KindConvolutionReverb:
		mix := 0.0
		if s.ConvolutionReverb != nil {
			mix = s.ConvolutionReverb.DryWet
		}
		return effects.NewConvolutionReverb(mix, irLoader)
	case container.KindDelayReverb:
		v := s.DelayReverb
		if v == nil {
			return effects.NewDelayReverb(0, 0)
		}
		return effects.NewDelayReverb(v.DurationMS, v.Amplitude)
	case container.KindDiffusionReverb:
		v := s.DiffusionReverb
		if v == nil {
			return effects.NewDiffusionReverb(0, 0, 0, 0, 0)
		}
		return effects.NewDiffusionReverb(v.PreDelayMS, v.RoomSizeMS, v.Decay, v.Damping, v.Diffusion)
	case container.KindLowPassFilter:
		v := s.LowPass
		if v == nil {
			return effects.NewLowPass(20000, 0.707)
		}
		return effects.NewLowPass(v.FreqHz, v.Q)
	case container.KindHighPassFilter:
		v := s.HighPass
		if v == nil {
			return effects.NewHighPass(20, 0.707)
		}
		return effects.NewHighPass(v.FreqHz, v.Q)
	case container.KindDistortion:
		v := s.Distortion
		if v == nil {
			return effects.NewDistortion(1, 1)
		}
		return effects.NewDistortion(v.Gain, v.Threshold)
	case container.KindCompressor:
		v := s.Compressor
		if v == nil {
			return effects.NewCompressor(-24, 4, 10, 100, 0)
		}
		return effects.NewCompressor(v.ThresholdDB, v.Ratio, v.AttackMS, v.ReleaseMS, v.MakeupDB)
	case container.KindLimiter:
		v := s.Limiter
		if v == nil {
			return effects.NewLimiter(0, 0, 0, 0)
		}
		return effects.NewLimiter(v.ThresholdDB, v.KneeDB, v.AttackMS, v.ReleaseMS)
	case container.KindMultibandEQ:
		if s.MultibandEQ == nil {
			return effects.NewMultibandEQ(nil)
		}
		points := make([]effects.EQPoint, len(s.MultibandEQ.Points))
		for i, p := range s.MultibandEQ.Points {
			points[i] = effects.EQPoint{FreqHz: p.FreqHz, Q: p.Q, GainDB: p.GainDB}
		}
		eq := effects.NewMultibandEQ(points)
		if le := s.MultibandEQ.LowEdge; le != nil {
			eq.LowEdgeKind = edgeKind(le.Kind)
			eq.LowEdgeHz = le.FreqHz
			eq.LowEdgeGainDB = le.GainDB
		}
		if he := s.MultibandEQ.HighEdge; he != nil {
			eq.HighEdgeKind = edgeKind(he.Kind)
			eq.HighEdgeHz = he.FreqHz
			eq.HighEdgeGainDB = he.GainDB
		}
		return eq
	default:
		return nil
	}
}

func edgeKind(s string) effects.EdgeFilterKind {
	switch s {
	case "pass":
		return effects.EdgePass
	case "shelf":
		return effects.EdgeShelf
	default:
		return effects.EdgeDisabled
	}
}
