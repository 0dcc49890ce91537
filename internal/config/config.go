// Package config loads optional YAML defaults for the playback engine.
// Flags parsed in cmd/proteus take priority over anything loaded here;
// this package only supplies the fallback values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings mirrors the subset of play-session tuning this engine
// exposes as constants. Load starts from Defaults() and overwrites only
// the keys the file sets; a key set to zero in the file stays zero.
type Settings struct {
	StartBufferMS      int     `yaml:"start_buffer_ms"`
	StartSinkChunks    int     `yaml:"start_sink_chunks"`
	MaxSinkChunks      int     `yaml:"max_sink_chunks"`
	StartupSilenceMS   int     `yaml:"startup_silence_ms"`
	StartupFadeMS      int     `yaml:"startup_fade_ms"`
	SeekFadeOutMS      int     `yaml:"seek_fade_out_ms"`
	SeekFadeInMS       int     `yaml:"seek_fade_in_ms"`
	AppendJitterLogMS  int     `yaml:"append_jitter_log_ms"`
	TrackEOSMS         int     `yaml:"track_eos_ms"`
	ShuffleIntervalMS  int     `yaml:"shuffle_interval_ms"`
	OutputDevice       string  `yaml:"output_device"`
	MeterRefreshHz     float64 `yaml:"meter_refresh_hz"`
	ReverbWorker       bool    `yaml:"reverb_worker"`
}

// Defaults returns the built-in session defaults used when no config file
// is supplied.
func Defaults() Settings {
	return Settings{
		StartBufferMS:     300,
		StartSinkChunks:   2,
		MaxSinkChunks:     0, // 0 == unbounded
		StartupSilenceMS:  0,
		StartupFadeMS:     100,
		SeekFadeOutMS:     100,
		SeekFadeInMS:      100,
		AppendJitterLogMS: 0,
		TrackEOSMS:        2000,
		ShuffleIntervalMS: 0, // 0 == never rotate slots mid-play
		OutputDevice:      "default",
		MeterRefreshHz:    30,
		ReverbWorker:      false,
	}
}

// Load reads a YAML settings file and overlays it on top of Defaults().
// Unknown keys are ignored rather than erroring: an older or newer config
// file must never block playback.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return s, nil
}
