package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlaySettingsLegacy(t *testing.T) {
	data := []byte(`{"tracks":[{"startingIndex":2,"length":3}]}`)
	ps, err := ParsePlaySettings(data)
	require.NoError(t, err)
	require.Equal(t, SchemaLegacy, ps.Version)
	require.Len(t, ps.Tracks, 1)
	require.Equal(t, []uint32{3, 4, 5}, ps.Tracks[0].IDs)
}

func TestParsePlaySettingsLegacySkipsIncompleteTrack(t *testing.T) {
	data := []byte(`{"tracks":[{"startingIndex":1}]}`)
	ps, err := ParsePlaySettings(data)
	require.NoError(t, err)
	require.Empty(t, ps.Tracks)
}

func TestParsePlaySettingsV2(t *testing.T) {
	data := []byte(`{
		"encoder_version": "2",
		"tracks": [{"ids":[1,2],"level":0.5,"pan":-0.2,"name":"drums"}],
		"effects": [{"LowPassFilterSettings":{"freq_hz":4000,"q":0.707}}],
		"impulse_response_path": "hall.wav",
		"impulse_response_tail_db": -60
	}`)
	ps, err := ParsePlaySettings(data)
	require.NoError(t, err)
	require.Equal(t, SchemaV2, ps.Version)
	require.Len(t, ps.Tracks, 1)
	require.Equal(t, float32(0.5), ps.Tracks[0].Level)
	require.Equal(t, "drums", ps.Tracks[0].Name)
	require.Len(t, ps.Effects, 1)
	require.Equal(t, KindLowPassFilter, ps.Effects[0].Kind)
	require.Equal(t, "file:hall.wav", ps.ImpulseResponseSpec)
	require.Equal(t, -60.0, ps.ImpulseResponseTailDB)
}

func TestParsePlaySettingsV3IgnoresInlineIR(t *testing.T) {
	data := []byte(`{
		"encoder_version": "3",
		"tracks": [],
		"impulse_response_path": "hall.wav"
	}`)
	ps, err := ParsePlaySettings(data)
	require.NoError(t, err)
	require.Equal(t, SchemaV3, ps.Version)
	require.Empty(t, ps.ImpulseResponseSpec)
}

func TestParsePlaySettingsDefaultTrackLevel(t *testing.T) {
	data := []byte(`{"encoder_version":"1","tracks":[{"ids":[7]}]}`)
	ps, err := ParsePlaySettings(data)
	require.NoError(t, err)
	require.Equal(t, float32(1), ps.Tracks[0].Level)
}

func TestParsePlaySettingsUnknownVersionDegrades(t *testing.T) {
	data := []byte(`{"encoder_version":"99","tracks":[]}`)
	ps, err := ParsePlaySettings(data)
	require.NoError(t, err)
	require.Equal(t, SchemaUnknown, ps.Version)
	require.Equal(t, data, []byte(ps.RawUnknown))
}

func TestParsePlaySettingsMalformedJSONErrors(t *testing.T) {
	_, err := ParsePlaySettings([]byte(`not json`))
	require.Error(t, err)
}

func TestParsePlaySettingsWrappedEnvelope(t *testing.T) {
	data := []byte(`{"play_settings":{"encoder_version":"1","tracks":[{"ids":[1]}]}}`)
	ps, err := ParsePlaySettings(data)
	require.NoError(t, err)
	require.Equal(t, SchemaV1, ps.Version)
	require.Len(t, ps.Tracks, 1)
}
