package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists the known conversational backend implementations.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = []string{"gemini"}

// ValidDetectorNames lists the known wake-word detector implementations.
var ValidDetectorNames = []string{"energy"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills unset fields from
// [Default], and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields that have a sensible built-in
// default. Device indices are left alone: 0 is a valid device index, so the
// file must say -1 explicitly to mean "host default" — [Default] does.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.Server.LogLevel
	}
	if cfg.Audio.SendSampleRate == 0 {
		cfg.Audio.SendSampleRate = def.Audio.SendSampleRate
	}
	if cfg.Audio.ReceiveSampleRate == 0 {
		cfg.Audio.ReceiveSampleRate = def.Audio.ReceiveSampleRate
	}
	if cfg.Audio.PlaybackSampleRate == 0 {
		cfg.Audio.PlaybackSampleRate = def.Audio.PlaybackSampleRate
	}
	if cfg.Audio.ChunkSize == 0 {
		cfg.Audio.ChunkSize = def.Audio.ChunkSize
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = def.Audio.Channels
	}
	if cfg.Backend.Name == "" {
		cfg.Backend.Name = def.Backend.Name
	}
	if cfg.WakeWord.Detector == "" {
		cfg.WakeWord.Detector = def.WakeWord.Detector
	}
	if cfg.WakeWord.TimeoutSeconds == 0 {
		cfg.WakeWord.TimeoutSeconds = def.WakeWord.TimeoutSeconds
	}
	if cfg.Personality == "" {
		cfg.Personality = def.Personality
	}
	if cfg.Visualizer.Variant == "" {
		cfg.Visualizer.Variant = def.Visualizer.Variant
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SendSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.send_sample_rate %d must be positive", cfg.Audio.SendSampleRate))
	}
	if cfg.Audio.ReceiveSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.receive_sample_rate %d must be positive", cfg.Audio.ReceiveSampleRate))
	}
	if cfg.Audio.PlaybackSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.playback_sample_rate %d must be positive", cfg.Audio.PlaybackSampleRate))
	}
	if cfg.Audio.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_size %d must be positive", cfg.Audio.ChunkSize))
	}
	if cfg.Audio.Channels != 1 {
		errs = append(errs, fmt.Errorf("audio.channels %d is unsupported; only mono (1) is supported", cfg.Audio.Channels))
	}

	// Backend
	if cfg.Backend.APIKey == "" {
		errs = append(errs, errors.New("backend.api_key is required"))
	}
	if cfg.Backend.Name != "" && !slices.Contains(ValidBackendNames, cfg.Backend.Name) {
		errs = append(errs, fmt.Errorf("backend.name %q is unknown; valid values: %v", cfg.Backend.Name, ValidBackendNames))
	}

	// Wake word
	if cfg.WakeWord.Enabled {
		if cfg.WakeWord.Detector != "" && !slices.Contains(ValidDetectorNames, cfg.WakeWord.Detector) {
			errs = append(errs, fmt.Errorf("wake_word.detector %q is unknown; valid values: %v", cfg.WakeWord.Detector, ValidDetectorNames))
		}
		if cfg.WakeWord.Threshold < 0 {
			errs = append(errs, fmt.Errorf("wake_word.threshold %.3f must not be negative", cfg.WakeWord.Threshold))
		}
	}
	if cfg.WakeWord.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("wake_word.timeout_seconds %d must not be negative", cfg.WakeWord.TimeoutSeconds))
	}

	// Effects
	if cfg.Effects.Enabled {
		if cfg.Effects.ChorusDepth < 0 || cfg.Effects.ChorusDepth > 1 {
			errs = append(errs, fmt.Errorf("effects.chorus_depth %.2f is out of range [0, 1]", cfg.Effects.ChorusDepth))
		}
		if cfg.Effects.ChorusMix < 0 || cfg.Effects.ChorusMix > 1 {
			errs = append(errs, fmt.Errorf("effects.chorus_mix %.2f is out of range [0, 1]", cfg.Effects.ChorusMix))
		}
		if cfg.Effects.ResonanceMix < 0 || cfg.Effects.ResonanceMix > 1 {
			errs = append(errs, fmt.Errorf("effects.resonance_mix %.2f is out of range [0, 1]", cfg.Effects.ResonanceMix))
		}
		if cfg.Effects.ResonanceMix > 0 && cfg.Effects.ResonanceFreqHz <= 0 {
			errs = append(errs, fmt.Errorf("effects.resonance_freq_hz %.1f must be positive when resonance is mixed in", cfg.Effects.ResonanceFreqHz))
		}
		if cfg.Effects.ResonanceFreqHz >= float64(cfg.Audio.PlaybackSampleRate)/2 && cfg.Audio.PlaybackSampleRate > 0 {
			errs = append(errs, fmt.Errorf("effects.resonance_freq_hz %.1f exceeds the Nyquist frequency for playback rate %d", cfg.Effects.ResonanceFreqHz, cfg.Audio.PlaybackSampleRate))
		}
		if cfg.Effects.BitcrushBits < 0 || cfg.Effects.BitcrushBits > 16 {
			errs = append(errs, fmt.Errorf("effects.bitcrush_bits %d is out of range [0, 16]", cfg.Effects.BitcrushBits))
		}
	}

	// AEC
	if cfg.AEC.Enabled {
		if cfg.AEC.StepSize < 0 {
			errs = append(errs, fmt.Errorf("aec.step_size %.3f must not be negative", cfg.AEC.StepSize))
		}
		if cfg.AEC.Smoothing < 0 || cfg.AEC.Smoothing >= 1 {
			errs = append(errs, fmt.Errorf("aec.smoothing %.3f is out of range [0, 1)", cfg.AEC.Smoothing))
		}
	}

	// Personality
	if cfg.Personality != "" {
		if _, err := LookupPersonality(cfg.Personality); err != nil {
			errs = append(errs, err)
		}
	}

	// Visualizer
	switch cfg.Visualizer.Variant {
	case "", "default", "alternate", "none":
	default:
		errs = append(errs, fmt.Errorf("visualizer.variant %q is invalid; valid values: default, alternate, none", cfg.Visualizer.Variant))
	}

	if cfg.Server.MetricsAddr == "" {
		slog.Debug("server.metrics_addr is empty; metrics endpoint disabled")
	}

	return errors.Join(errs...)
}
