// Command gemipi is the main entry point for the Gemipi voice engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LasseHartmann/Gemipi/internal/assistant"
	"github.com/LasseHartmann/Gemipi/internal/config"
	"github.com/LasseHartmann/Gemipi/internal/health"
	"github.com/LasseHartmann/Gemipi/internal/observe"
	"github.com/LasseHartmann/Gemipi/pkg/audio"
	"github.com/LasseHartmann/Gemipi/pkg/backend/gemini"
	"github.com/LasseHartmann/Gemipi/pkg/dsp"
	"github.com/LasseHartmann/Gemipi/pkg/visualizer"
	"github.com/LasseHartmann/Gemipi/pkg/wakeword"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "gemipi: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "gemipi: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("gemipi starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"personality", cfg.Personality,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics provider shutdown error", "err", err)
		}
	}()

	// ── Engine assembly ───────────────────────────────────────────────────────
	personality, err := config.LookupPersonality(cfg.Personality)
	if err != nil {
		slog.Error("unknown personality", "err", err)
		return 1
	}

	bus := audio.NewBus(audio.DefaultBusCapacity)

	var portOpts []audio.PortOption
	var resetters []assistant.Resetter

	var canceller *dsp.EchoCanceller
	if cfg.AEC.Enabled {
		var aecOpts []dsp.CancellerOption
		if cfg.AEC.StepSize > 0 {
			aecOpts = append(aecOpts, dsp.WithStepSize(cfg.AEC.StepSize))
		}
		if cfg.AEC.Smoothing > 0 {
			aecOpts = append(aecOpts, dsp.WithSmoothing(cfg.AEC.Smoothing))
		}
		canceller = dsp.NewEchoCanceller(cfg.Audio.ChunkSize, aecOpts...)
		portOpts = append(portOpts,
			audio.WithCaptureFilter(canceller),
			audio.WithEchoReference(canceller),
		)
		resetters = append(resetters, canceller)
	}

	if cfg.Effects.Enabled {
		effects := dsp.NewEffectsChain(cfg.Audio.PlaybackSampleRate, effectsConfig(cfg.Effects))
		portOpts = append(portOpts, audio.WithEffects(effects))
		resetters = append(resetters, effects)
	}

	port := audio.NewPort(audio.PortConfig{
		CaptureRate:  cfg.Audio.SendSampleRate,
		PlaybackRate: cfg.Audio.PlaybackSampleRate,
		Channels:     cfg.Audio.Channels,
		FrameSize:    cfg.Audio.ChunkSize,
		InputDevice:  cfg.Audio.InputDeviceIndex,
		OutputDevice: cfg.Audio.OutputDeviceIndex,
	}, bus, portOpts...)

	var geminiOpts []gemini.Option
	if cfg.Backend.Model != "" {
		geminiOpts = append(geminiOpts, gemini.WithModel(cfg.Backend.Model))
	}
	if cfg.Backend.BaseURL != "" {
		geminiOpts = append(geminiOpts, gemini.WithBaseURL(cfg.Backend.BaseURL))
	}
	geminiOpts = append(geminiOpts, gemini.WithReceiveSampleRate(cfg.Audio.ReceiveSampleRate))
	provider := gemini.New(cfg.Backend.APIKey, geminiOpts...)

	asstOpts := []assistant.Option{
		assistant.WithNotifier(visualizer.New(visualizer.Variant(cfg.Visualizer.Variant), logger)),
		assistant.WithLogger(logger),
	}
	if len(resetters) > 0 {
		asstOpts = append(asstOpts, assistant.WithResetters(resetters...))
	}
	if canceller != nil {
		asstOpts = append(asstOpts, assistant.WithEchoGuard(canceller))
	}
	if cfg.WakeWord.Enabled {
		var wakeOpts []wakeword.EnergyOption
		if cfg.WakeWord.Threshold > 0 {
			wakeOpts = append(wakeOpts, wakeword.WithThreshold(cfg.WakeWord.Threshold))
		}
		asstOpts = append(asstOpts, assistant.WithDetector(wakeword.NewEnergyDetector(wakeOpts...)))
	}

	a := assistant.New(assistant.Config{
		Personality:       personality,
		Model:             cfg.Backend.Model,
		Voice:             cfg.Backend.Voice,
		SendSampleRate:    cfg.Audio.SendSampleRate,
		ReceiveSampleRate: cfg.Audio.ReceiveSampleRate,
		WakeEnabled:       cfg.WakeWord.Enabled,
		InactivityTimeout: time.Duration(cfg.WakeWord.TimeoutSeconds) * time.Second,
		BackendName:       cfg.Backend.Name,
	}, port, bus, provider, asstOpts...)

	// ── Metrics / health endpoint (optional) ──────────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(
			health.BoolCheck("audio", port.Running, "audio port not running"),
		).Register(mux)

		go func() {
			if err := health.Serve(ctx, cfg.Server.MetricsAddr, mux); err != nil {
				slog.Error("metrics endpoint error", "err", err, "addr", cfg.Server.MetricsAddr)
			}
		}()
		slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
	}

	printStartupSummary(cfg)

	slog.Info("engine ready — press Ctrl+C to shut down")

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// effectsConfig maps the YAML effects section onto the DSP chain's config.
// A stage is active when its parameters give it something to do: zero pitch
// shift, zero wet mix, or 16-bit depth each disable their stage.
func effectsConfig(e config.EffectsConfig) dsp.EffectsConfig {
	return dsp.EffectsConfig{
		PitchShiftEnabled:   e.PitchShift != 0,
		PitchShiftSemitones: e.PitchShift,
		ChorusEnabled:       e.ChorusMix > 0,
		ChorusDepth:         e.ChorusDepth,
		ChorusRateHz:        e.ChorusRateHz,
		ChorusMix:           e.ChorusMix,
		ResonanceEnabled:    e.ResonanceMix > 0,
		ResonanceFreqHz:     e.ResonanceFreqHz,
		ResonanceMix:        e.ResonanceMix,
		BitcrushEnabled:     e.BitcrushBits > 0 && e.BitcrushBits < 16,
		BitcrushBits:        e.BitcrushBits,
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Gemipi — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Backend", cfg.Backend.Name+modelSuffix(cfg.Backend.Model))
	printRow("Personality", cfg.Personality)
	printRow("Capture rate", fmt.Sprintf("%d Hz", cfg.Audio.SendSampleRate))
	printRow("Playback rate", fmt.Sprintf("%d Hz", cfg.Audio.PlaybackSampleRate))
	printRow("Wake word", onOff(cfg.WakeWord.Enabled))
	printRow("Voice effects", onOff(cfg.Effects.Enabled))
	printRow("Echo cancel", onOff(cfg.AEC.Enabled))
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics addr", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

func modelSuffix(model string) string {
	if model == "" {
		return ""
	}
	return " / " + model
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
