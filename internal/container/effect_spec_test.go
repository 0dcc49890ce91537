package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEffectSpecsJSON(t *testing.T) {
	data := []byte(`[
		{"CompressorSettings":{"threshold_db":-18,"ratio":3,"attack_ms":10,"release_ms":120,"makeup_db":2}},
		{"LimiterSettings":{"threshold_db":-1,"knee_db":3,"attack_ms":5,"release_ms":50}}
	]`)
	specs, err := ParseEffectSpecsJSON(data)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	require.Equal(t, KindCompressor, specs[0].Kind)
	require.Equal(t, -18.0, specs[0].Compressor.ThresholdDB)
	require.Equal(t, KindLimiter, specs[1].Kind)
	require.Equal(t, 3.0, specs[1].Limiter.KneeDB)
}

func TestParseEffectSpecsJSONUnknownTypeErrors(t *testing.T) {
	_, err := ParseEffectSpecsJSON([]byte(`[{"NotARealEffect":{}}]`))
	require.Error(t, err)
}

func TestParseEffectSpecsJSONMultiKeyEntryErrors(t *testing.T) {
	_, err := ParseEffectSpecsJSON([]byte(`[{"LimiterSettings":{},"CompressorSettings":{}}]`))
	require.Error(t, err)
}

func TestParseEffectSpecsJSONMalformedErrors(t *testing.T) {
	_, err := ParseEffectSpecsJSON([]byte(`not json`))
	require.Error(t, err)
}

func TestBasicReverbAliasesToDelayReverb(t *testing.T) {
	specs, err := ParseEffectSpecsJSON([]byte(`[{"BasicReverbSettings":{"duration_ms":250,"amplitude":0.4}}]`))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, KindDelayReverb, specs[0].Kind)
	require.Equal(t, 250.0, specs[0].DelayReverb.DurationMS)
}

func TestConvolutionReverbDryWetAliases(t *testing.T) {
	for _, field := range []string{"dry_wet", "wet_dry", "mix"} {
		specs, err := ParseEffectSpecsJSON([]byte(`[{"ConvolutionReverbSettings":{"` + field + `":0.65}}]`))
		require.NoError(t, err, field)
		require.Len(t, specs, 1)
		require.Equal(t, 0.65, specs[0].ConvolutionReverb.DryWet, field)
	}
}

func TestConvolutionReverbDryWetWinsOverAliases(t *testing.T) {
	specs, err := ParseEffectSpecsJSON([]byte(`[{"ConvolutionReverbSettings":{"dry_wet":0.9,"mix":0.1}}]`))
	require.NoError(t, err)
	require.Equal(t, 0.9, specs[0].ConvolutionReverb.DryWet)
}

func TestEffectSpecEnabledDefaultsToTrue(t *testing.T) {
	specs, err := ParseEffectSpecsJSON([]byte(`[{"LimiterSettings":{"threshold_db":-1}}]`))
	require.NoError(t, err)
	require.True(t, specs[0].Enabled())
}

func TestEffectSpecEnabledFalseIsHonored(t *testing.T) {
	specs, err := ParseEffectSpecsJSON([]byte(`[
		{"LimiterSettings":{"threshold_db":-1,"enabled":false}},
		{"DelayReverbSettings":{"duration_ms":100,"enabled":true}}
	]`))
	require.NoError(t, err)
	require.False(t, specs[0].Enabled())
	require.True(t, specs[1].Enabled())
}
