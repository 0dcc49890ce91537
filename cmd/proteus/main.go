// Command proteus plays, inspects, and benchmarks .prot containers.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/proteus-audio/proteus/internal/config"
	"github.com/proteus-audio/proteus/internal/container"
	"github.com/proteus-audio/proteus/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	args := os.Args[2:]

	var err error
	switch sub {
	case "play":
		err = runPlay(args)
	case "info":
		err = runInfo(args)
	case "peaks":
		err = runPeaks(args)
	case "verify":
		err = runVerify(args)
	case "bench":
		err = runBench(args)
	case "create":
		err = runCreate(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "proteus: unknown subcommand %q\n", sub)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "proteus: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: proteus <command> [flags]

commands:
  play <file.prot>     play a container
  info <file.prot>     print container/track/effect summary
  peaks <file.prot>    write a PPEAKS01 waveform-peaks file
  verify <probe|decode|verify> <file.prot>
  bench <dsp|sweep>
  create effects-json  print an example effects JSON document`)
}

func runPlay(args []string) error {
	fs := pflag.NewFlagSet("play", pflag.ContinueOnError)
	seek := fs.Float64("seek", 0, "start position in seconds")
	gain := fs.Float64("gain", 1.0, "master output gain")
	effectsJSON := fs.String("effects-json", "", "path to an effects JSON override")
	configPath := fs.String("config", "", "path to a YAML settings file")
	startBufferMS := fs.Int("start-buffer-ms", 0, "override start_buffer_ms")
	startSinkChunks := fs.Int("start-sink-chunks", 0, "override start_sink_chunks")
	startupSilenceMS := fs.Int("startup-silence-ms", -1, "override startup_silence_ms")
	startupFadeMS := fs.Int("startup-fade-ms", -1, "override startup_fade_ms")
	appendJitterLogMS := fs.Int("append-jitter-log-ms", -1, "override append_jitter_log_ms")
	trackEOSMS := fs.Int("track-eos-ms", -1, "override track_eos_ms")
	shuffleIntervalMS := fs.Int("shuffle-interval-ms", -1, "rotate shuffle slots every N ms (0 disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("play: a container path is required")
	}
	path := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *startBufferMS > 0 {
		cfg.StartBufferMS = *startBufferMS
	}
	if *startSinkChunks > 0 {
		cfg.StartSinkChunks = *startSinkChunks
	}
	if *startupSilenceMS >= 0 {
		cfg.StartupSilenceMS = *startupSilenceMS
	}
	if *startupFadeMS >= 0 {
		cfg.StartupFadeMS = *startupFadeMS
	}
	if *appendJitterLogMS >= 0 {
		cfg.AppendJitterLogMS = *appendJitterLogMS
	}
	if *trackEOSMS >= 0 {
		cfg.TrackEOSMS = *trackEOSMS
	}
	if *shuffleIntervalMS >= 0 {
		cfg.ShuffleIntervalMS = *shuffleIntervalMS
	}
	logging.Init(os.Getenv("PROTEUS_LOG_LEVEL"), os.Getenv("PROTEUS_LOG_COLOR") != "0")

	sess, err := newSession(path, cfg, *effectsJSON, float32(*gain))
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Play(time.Duration(*seek * float64(time.Second))); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := sess.Done()
	select {
	case <-sigCh:
		logging.L().Info("proteus: interrupted, stopping")
		sess.Stop()
	case <-done:
	}
	return nil
}

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info: a container path is required")
	}
	c, err := container.Open(args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("path: %s\n", c.Path)
	fmt.Printf("schema version: %d\n", c.Settings.Version)
	fmt.Printf("tracks: %d\n", len(c.Settings.Tracks))
	for i, t := range c.Settings.Tracks {
		fmt.Printf("  [%d] name=%q ids=%v level=%.3f pan=%.3f\n", i, t.Name, t.IDs, t.Level, t.Pan)
	}
	fmt.Printf("effects: %d\n", len(c.Settings.Effects))
	if c.Settings.ImpulseResponseSpec != "" {
		fmt.Printf("impulse response: %s (tail %.1f dB)\n", c.Settings.ImpulseResponseSpec, c.Settings.ImpulseResponseTailDB)
	}
	fmt.Printf("matroska tracks: %d, attachments: %d\n", len(c.Doc.Tracks), len(c.Doc.Attachments))
	return nil
}

func runVerify(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("verify: usage is `verify <probe|decode|verify> <file.prot>`")
	}
	mode, path := args[0], args[1]
	c, err := container.Open(path)
	if err != nil {
		return fmt.Errorf("verify: %s: %w", mode, err)
	}
	defer c.Close()

	switch mode {
	case "probe":
		fmt.Printf("ok: %d matroska tracks, %d attachments\n", len(c.Doc.Tracks), len(c.Doc.Attachments))
	case "decode":
		for _, t := range c.Doc.Tracks {
			stream, codecID, err := c.OpenTrackStream(t.Number)
			if err != nil {
				return fmt.Errorf("verify: decode track %d: %w", t.Number, err)
			}
			stream.Close()
			fmt.Printf("track %d: codec %s ok\n", t.Number, codecID)
		}
	case "verify":
		if c.Settings.Version == container.SchemaUnknown {
			return fmt.Errorf("verify: play_settings.json missing or unparseable")
		}
		fmt.Println("ok: play_settings parsed")
	default:
		return fmt.Errorf("verify: unknown mode %q", mode)
	}
	return nil
}

func runPeaks(args []string) error {
	fs := pflag.NewFlagSet("peaks", pflag.ContinueOnError)
	out := fs.StringP("out", "o", "", "output .peaks path (defaults to <input>.peaks)")
	windowSize := fs.Int("window", 512, "samples per peak window")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("peaks: a container path is required")
	}
	path := fs.Arg(0)
	outPath := *out
	if outPath == "" {
		outPath = path + ".peaks"
	}
	return writePeaksFile(path, outPath, *windowSize)
}

func runBench(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("bench: usage is `bench <dsp|sweep>`")
	}
	switch args[0] {
	case "dsp":
		return benchDSP()
	case "sweep":
		return benchSweep()
	default:
		return fmt.Errorf("bench: unknown target %q", args[0])
	}
}

func runCreate(args []string) error {
	if len(args) < 1 || args[0] != "effects-json" {
		return fmt.Errorf("create: usage is `create effects-json`")
	}
	fmt.Println(exampleEffectsJSON)
	return nil
}
