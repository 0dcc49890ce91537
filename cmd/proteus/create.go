package main

// exampleEffectsJSON is a minimal, valid document for the --effects-json
// override flag: a bare JSON array of externally-tagged effect entries —
// each a single-key object whose key names the variant — the same shape
// play_settings.json carries under its "effects" key.
const exampleEffectsJSON = `[
  {
    "LowPassFilterSettings": {
      "freq_hz": 12000,
      "q": 0.707
    }
  },
  {
    "CompressorSettings": {
      "threshold_db": -18,
      "ratio": 3,
      "attack_ms": 10,
      "release_ms": 120,
      "makeup_db": 2
    }
  },
  {
    "LimiterSettings": {
      "threshold_db": -1,
      "knee_db": 3,
      "attack_ms": 5,
      "release_ms": 50
    }
  }
]`
