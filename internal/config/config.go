// Package config provides the configuration schema, loader, and personality
// registry for the Gemipi voice engine.
package config

// LogLevel controls log verbosity for the engine.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Gemipi.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Audio       AudioConfig      `yaml:"audio"`
	Backend     BackendConfig    `yaml:"backend"`
	WakeWord    WakeWordConfig   `yaml:"wake_word"`
	Effects     EffectsConfig    `yaml:"effects"`
	AEC         AECConfig        `yaml:"aec"`
	Personality string           `yaml:"personality"`
	Visualizer  VisualizerConfig `yaml:"visualizer"`
}

// ServerConfig holds logging and observability settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the metrics/health endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// AudioConfig describes sample rates, framing, and device selection.
type AudioConfig struct {
	// SendSampleRate is the microphone capture rate in Hz; audio is sent to
	// the backend at this rate.
	SendSampleRate int `yaml:"send_sample_rate"`

	// ReceiveSampleRate is the rate of synthesized audio coming back from
	// the backend, in Hz.
	ReceiveSampleRate int `yaml:"receive_sample_rate"`

	// PlaybackSampleRate is the speaker output rate in Hz. Received audio
	// is resampled to it before playback.
	PlaybackSampleRate int `yaml:"playback_sample_rate"`

	// ChunkSize is the number of samples per hardware buffer.
	ChunkSize int `yaml:"chunk_size"`

	// Channels is the channel count for both streams. Only mono (1) is
	// supported.
	Channels int `yaml:"channels"`

	// InputDeviceIndex and OutputDeviceIndex select devices by index.
	// -1 selects the host default.
	InputDeviceIndex  int `yaml:"input_device_index"`
	OutputDeviceIndex int `yaml:"output_device_index"`
}

// BackendConfig selects and authenticates the conversational backend.
type BackendConfig struct {
	// Name selects the backend implementation (e.g., "gemini").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the backend's API.
	APIKey string `yaml:"api_key"`

	// Model selects a specific model within the backend.
	Model string `yaml:"model"`

	// Voice selects the backend voice preset. Leave empty for the backend
	// default.
	Voice string `yaml:"voice"`

	// BaseURL overrides the backend's default endpoint.
	// Leave empty to use the built-in default.
	BaseURL string `yaml:"base_url"`
}

// WakeWordConfig controls session activation.
type WakeWordConfig struct {
	// Enabled turns wake-word gating on. When false the engine runs a
	// single session immediately and exits when it ends.
	Enabled bool `yaml:"enabled"`

	// Detector selects the detector implementation (e.g., "energy").
	Detector string `yaml:"detector"`

	// Threshold is the detector-specific activation threshold. For the
	// energy detector it is RMS level as a fraction of full scale.
	Threshold float64 `yaml:"threshold"`

	// TimeoutSeconds is the per-session inactivity timeout. After this much
	// silence with no model speech the session is torn down.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// EffectsConfig parameterises the synthetic voice treatment applied to
// backend speech before playback.
type EffectsConfig struct {
	Enabled bool `yaml:"enabled"`

	// PitchShift transposes the voice in semitones; negative lowers it.
	PitchShift float64 `yaml:"pitch_shift"`

	// ChorusDepth is the delay modulation depth as a fraction of the base
	// delay, in [0, 1].
	ChorusDepth float64 `yaml:"chorus_depth"`

	// ChorusRateHz is the chorus LFO rate.
	ChorusRateHz float64 `yaml:"chorus_rate_hz"`

	// ChorusMix is the chorus wet fraction, in [0, 1].
	ChorusMix float64 `yaml:"chorus_mix"`

	// ResonanceFreqHz is the centre frequency of the resonant band.
	ResonanceFreqHz float64 `yaml:"resonance_freq_hz"`

	// ResonanceMix is the resonance wet fraction, in [0, 1].
	ResonanceMix float64 `yaml:"resonance_mix"`

	// BitcrushBits is the quantisation depth in bits, in [1, 16].
	// 16 disables crushing.
	BitcrushBits int `yaml:"bitcrush_bits"`
}

// AECConfig controls acoustic echo cancellation on the capture path.
type AECConfig struct {
	Enabled bool `yaml:"enabled"`

	// StepSize is the adaptive filter learning rate. 0 uses the built-in
	// default.
	StepSize float64 `yaml:"step_size"`

	// Smoothing is the reference power smoothing factor in (0, 1). 0 uses
	// the built-in default.
	Smoothing float64 `yaml:"smoothing"`
}

// VisualizerConfig selects the state display.
type VisualizerConfig struct {
	// Variant selects the notifier implementation: "default", "alternate",
	// or "none".
	Variant string `yaml:"variant"`
}

// Default returns the configuration used when no file is supplied: 16 kHz
// capture and playback, 24 kHz receive, 1024-sample buffers, default
// devices, effects and echo cancellation on, 30-second inactivity timeout.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Audio: AudioConfig{
			SendSampleRate:     16000,
			ReceiveSampleRate:  24000,
			PlaybackSampleRate: 16000,
			ChunkSize:          1024,
			Channels:           1,
			InputDeviceIndex:   -1,
			OutputDeviceIndex:  -1,
		},
		Backend: BackendConfig{
			Name: "gemini",
		},
		WakeWord: WakeWordConfig{
			Enabled:        true,
			Detector:       "energy",
			TimeoutSeconds: 30,
		},
		Effects: EffectsConfig{
			Enabled:         true,
			PitchShift:      2,
			ChorusDepth:     0.4,
			ChorusRateHz:    0.5,
			ChorusMix:       0.3,
			ResonanceFreqHz: 2500,
			ResonanceMix:    0.3,
			BitcrushBits:    12,
		},
		AEC: AECConfig{
			Enabled: true,
		},
		Personality: "glados",
		Visualizer: VisualizerConfig{
			Variant: "default",
		},
	}
}
