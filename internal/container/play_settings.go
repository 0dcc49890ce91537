// Package container models the .prot container's play-settings payload,
// the audio-effect tagged union it carries, and the runtime shuffle plan
// built from it. Deep Matroska/EBML demuxing lives in the container/ebml
// subpackage; this file is pure encoding/json against an already-extracted
// attachment payload.
package container

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion identifies which play-settings shape was parsed.
type SchemaVersion int

const (
	SchemaLegacy SchemaVersion = iota
	SchemaV1
	SchemaV2
	SchemaV3
	SchemaUnknown
)

// PlaySettings is the schema-normalized result of parsing play_settings.json,
// regardless of which versioned shape it came from.
type PlaySettings struct {
	Version              SchemaVersion
	RawEncoderVersion     string
	Tracks                []Track
	Effects                []EffectSpec
	ImpulseResponseSpec    string
	ImpulseResponseTailDB  float64
	RawUnknown             json.RawMessage
}

// Track is one logical slot's settings: the candidate container-track ids
// it may resolve to, plus mixing parameters.
type Track struct {
	IDs      []uint32
	Level    float32
	Pan      float32
	Name     string
	SafeName string
}

type legacyTrack struct {
	StartingIndex *uint32 `json:"startingIndex"`
	Length        *uint32 `json:"length"`
}

type legacyPayload struct {
	Tracks []legacyTrack `json:"tracks"`
}

type versionedTrack struct {
	IDs      []uint32 `json:"ids"`
	Level    float32  `json:"level"`
	Pan      float32  `json:"pan"`
	Name     string   `json:"name"`
	SafeName string   `json:"safe_name"`
}

type versionedPayload struct {
	Effects                    []rawEffect       `json:"effects"`
	Tracks                     []versionedTrack  `json:"tracks"`
	ImpulseResponse            string            `json:"impulse_response"`
	ImpulseResponseAttachment  string            `json:"impulse_response_attachment"`
	ImpulseResponsePath        string            `json:"impulse_response_path"`
	ImpulseResponseTailDB      *float64          `json:"impulse_response_tail_db"`
}

// container is the outer envelope that may or may not wrap the payload
// one extra level under "play_settings" — both the flat and nested forms
// are accepted without a schema error.
type container struct {
	PlaySettings json.RawMessage `json:"play_settings"`
}

func unwrap(raw json.RawMessage) json.RawMessage {
	var env container
	if err := json.Unmarshal(raw, &env); err == nil && len(env.PlaySettings) > 0 {
		return env.PlaySettings
	}
	return raw
}

// ParsePlaySettings best-effort parses a play_settings.json payload,
// probing "encoder_version" to select a schema. Unknown or malformed
// versions degrade to SchemaUnknown with the raw bytes preserved rather
// than failing outright — play settings errors are configuration errors,
// never fatal (see the error-handling design).
func ParsePlaySettings(data []byte) (*PlaySettings, error) {
	var probe struct {
		EncoderVersion json.RawMessage `json:"encoder_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("container: play_settings is not valid JSON: %w", err)
	}

	version, raw := classifyVersion(probe.EncoderVersion)

	switch version {
	case SchemaLegacy:
		ps, err := parseLegacy(data)
		if err == nil {
			return ps, nil
		}
	case SchemaV1, SchemaV2, SchemaV3:
		ps, err := parseVersioned(data, version)
		if err == nil {
			return ps, nil
		}
	}

	return &PlaySettings{Version: SchemaUnknown, RawEncoderVersion: raw, RawUnknown: data}, nil
}

func classifyVersion(raw json.RawMessage) (SchemaVersion, string) {
	if len(raw) == 0 {
		return SchemaLegacy, ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			s = n.String()
		}
	}
	switch s {
	case "1":
		return SchemaV1, s
	case "2":
		return SchemaV2, s
	case "3":
		return SchemaV3, s
	default:
		return SchemaUnknown, s
	}
}

func parseLegacy(data []byte) (*PlaySettings, error) {
	body := unwrap(data)
	var p legacyPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("container: legacy play_settings: %w", err)
	}
	tracks := make([]Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.StartingIndex == nil || t.Length == nil {
			continue
		}
		// The +1 bias below is deliberate: candidate ids run from
		// startingIndex+1 through startingIndex+length inclusive,
		// preserving the legacy 1-based range literally.
		ids := make([]uint32, 0, *t.Length)
		for id := *t.StartingIndex + 1; id <= *t.StartingIndex+*t.Length; id++ {
			ids = append(ids, id)
		}
		tracks = append(tracks, Track{IDs: ids, Level: 1, Pan: 0})
	}
	return &PlaySettings{Version: SchemaLegacy, Tracks: tracks}, nil
}

func parseVersioned(data []byte, version SchemaVersion) (*PlaySettings, error) {
	body := unwrap(data)
	var p versionedPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("container: v%d play_settings: %w", version, err)
	}
	tracks := make([]Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		level := t.Level
		if level == 0 {
			level = 1
		}
		tracks = append(tracks, Track{IDs: t.IDs, Level: level, Pan: t.Pan, Name: t.Name, SafeName: t.SafeName})
	}
	effects := make([]EffectSpec, 0, len(p.Effects))
	for _, re := range p.Effects {
		spec, err := re.toSpec()
		if err != nil {
			continue // one malformed effect entry degrades, it never aborts the whole parse
		}
		effects = append(effects, spec)
	}

	ps := &PlaySettings{Version: version, Tracks: tracks, Effects: effects}

	// Whatever the schema, a ConvolutionReverbSettings entry carrying its
	// own IR reference wins absence of the inline fields — it is V3's only
	// way of naming one.
	for _, e := range effects {
		if e.Kind == KindConvolutionReverb && e.ConvolutionReverb != nil && e.ConvolutionReverb.ImpulseResponse != "" {
			ps.ImpulseResponseSpec = e.ConvolutionReverb.ImpulseResponse
			ps.ImpulseResponseTailDB = e.ConvolutionReverb.ImpulseResponseTailDB
			break
		}
	}

	// Inline impulse-response fields only apply to schema V1/V2; V3's
	// IR comes exclusively through a ConvolutionReverbSettings effect entry.
	if version == SchemaV1 || version == SchemaV2 {
		switch {
		case p.ImpulseResponse != "":
			ps.ImpulseResponseSpec = p.ImpulseResponse
		case p.ImpulseResponseAttachment != "":
			ps.ImpulseResponseSpec = "attachment:" + p.ImpulseResponseAttachment
		case p.ImpulseResponsePath != "":
			ps.ImpulseResponseSpec = "file:" + p.ImpulseResponsePath
		}
		if p.ImpulseResponseTailDB != nil {
			ps.ImpulseResponseTailDB = *p.ImpulseResponseTailDB
		}
	}
	return ps, nil
}
