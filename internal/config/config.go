package config

import (
	"time"

	"analyser/internal/analysis"
	"analyser/internal/ring"
)

// Core configuration constants that define the boundaries and defaults
// for the analyser.
const (
	// Analysis defaults
	DefaultSampleRate   = analysis.DefaultSampleRate // Clip rate assumed when no file overrides it
	DefaultRingCapacity = ring.DefaultCapacity       // Samples retained per analyser
	DefaultRefreshRate  = 60                         // Analysis/redraw rate (Hz)

	// Audio capture defaults
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultInputChannels   = 1           // Mono capture
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode

	// Recording defaults
	DefaultRecordingDir      = "./recordings"
	DefaultRecordingBitDepth = 16

	// Transport defaults
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 16 * time.Millisecond // ~60Hz
	DefaultWebSocketAddress = ":8080"

	// Hardware and processing limits
	MinDeviceID      = -1     // -1 represents system default device
	MinSampleRate    = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate    = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames  = 8192   // Maximum frames per capture buffer
	MaxRefreshRate   = 240    // Upper bound on analysis rate (Hz)
	MaxAnalyserName  = 255    // Analyser names travel in a uint8-prefixed field
	MaxInputChannels = 32
)

// Names of the two analysers in the default comparison.
const (
	ReferenceAnalyser = "reference"
	AlternateAnalyser = "alternate"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug        bool             `yaml:"debug"`         // Force debug logging.
	LogLevel     string           `yaml:"log_level"`     // "debug", "info", "warn" or "error".
	SampleRate   float64          `yaml:"sample_rate"`   // Capture rate for live input (Hz).
	RingCapacity int              `yaml:"ring_capacity"` // Ring buffer size per analyser (power of two).
	RefreshRate  int              `yaml:"refresh_rate"`  // Spectra computed per second.
	Analysers    []AnalyserConfig `yaml:"analysers"`     // Analysers compared side by side; the first two are diffed.
	Audio        AudioConfig      `yaml:"audio"`         // Live capture settings.
	Recording    RecordingConfig  `yaml:"recording"`     // Recording of the analysed signal.
	Transport    TransportConfig  `yaml:"transport"`     // Frame publication.
}

// AnalyserConfig describes one named analyser.
type AnalyserConfig struct {
	Name                  string  `yaml:"name"`
	FrameSize             int     `yaml:"frame_size"`
	SmoothingTimeConstant float64 `yaml:"smoothing_time_constant"`
	MinDecibels           float64 `yaml:"min_decibels"`
	MaxDecibels           float64 `yaml:"max_decibels"`
}

// AudioConfig holds settings related to live audio input.
type AudioConfig struct {
	InputDevice     int  `yaml:"input_device"`      // PortAudio device index (-1 for default).
	InputChannels   int  `yaml:"input_channels"`    // Channels captured and averaged to mono.
	FramesPerBuffer int  `yaml:"frames_per_buffer"` // Frames per PortAudio callback.
	LowLatency      bool `yaml:"low_latency"`       // Request the device's low latency setting.
}

// RecordingConfig holds settings for recording the analysed signal to WAV.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputDir  string `yaml:"output_dir"`  // Used when OutputFile is empty.
	OutputFile string `yaml:"output_file"` // Explicit file path, overrides OutputDir.
	BitDepth   int    `yaml:"bit_depth"`   // 16, 24 or 32.
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"` // Listen address for /ws.
}

// DefaultAnalyserConfig returns the reference analyser settings under name.
func DefaultAnalyserConfig(name string) AnalyserConfig {
	return AnalyserConfig{
		Name:                  name,
		FrameSize:             analysis.DefaultFrameSize,
		SmoothingTimeConstant: analysis.DefaultSmoothingTimeConstant,
		MinDecibels:           analysis.DefaultMinDecibels,
		MaxDecibels:           analysis.DefaultMaxDecibels,
	}
}

// NewConfig returns the built-in defaults: a reference analyser and an
// alternate with lighter smoothing and a lower ceiling.
func NewConfig() *Config {
	alt := DefaultAnalyserConfig(AlternateAnalyser)
	alt.SmoothingTimeConstant = 0.5
	alt.MaxDecibels = -12

	return &Config{
		LogLevel:     "info",
		SampleRate:   DefaultSampleRate,
		RingCapacity: DefaultRingCapacity,
		RefreshRate:  DefaultRefreshRate,
		Analysers: []AnalyserConfig{
			DefaultAnalyserConfig(ReferenceAnalyser),
			alt,
		},
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			InputChannels:   DefaultInputChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultRecordingBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketAddress: DefaultWebSocketAddress,
		},
	}
}

// RefreshInterval returns the period between two analysis steps.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshRate <= 0 {
		return time.Second / DefaultRefreshRate
	}
	return time.Second / time.Duration(c.RefreshRate)
}
