// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"analyser/internal/analysis"
	applog "analyser/internal/log"
	"analyser/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("configuration: Loaded %s", path)
	}

	// Environment variables take precedence over the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("sample_rate %.0f outside [%d, %d]", c.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.RefreshRate <= 0 || c.RefreshRate > MaxRefreshRate {
		errs = append(errs, fmt.Errorf("refresh_rate %d outside [1, %d]", c.RefreshRate, MaxRefreshRate))
	}

	if len(c.Analysers) == 0 {
		errs = append(errs, errors.New("at least one analyser is required"))
	}
	seen := make(map[string]bool, len(c.Analysers))
	for i, a := range c.Analysers {
		switch {
		case a.Name == "":
			errs = append(errs, fmt.Errorf("analysers[%d]: name is required", i))
		case len(a.Name) > MaxAnalyserName:
			errs = append(errs, fmt.Errorf("analysers[%d]: name longer than %d bytes", i, MaxAnalyserName))
		case seen[a.Name]:
			errs = append(errs, fmt.Errorf("analysers[%d]: duplicate name %q", i, a.Name))
		}
		seen[a.Name] = true

		if err := a.EngineConfig(c.SampleRate, c.RingCapacity).Validate(); err != nil {
			if errors.Is(err, analysis.ErrFrameSize) && a.FrameSize > 1 {
				err = fmt.Errorf("%w (nearest power of two: %d)", err, bitint.NextPowerOfTwo(a.FrameSize))
			}
			errs = append(errs, fmt.Errorf("analysers[%d] %q: %w", i, a.Name, err))
		}
	}

	if c.Audio.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device %d is invalid (use -1 for the default device)", c.Audio.InputDevice))
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > MaxInputChannels {
		errs = append(errs, fmt.Errorf("audio.input_channels %d outside [1, %d]", c.Audio.InputChannels, MaxInputChannels))
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d outside [1, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames))
	}

	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("recording.bit_depth %d must be 16, 24 or 32", c.Recording.BitDepth))
	}

	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		errs = append(errs, errors.New("transport.websocket_address must be set when the websocket transport is enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are reported and ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("configuration: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("configuration: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_WS_{...}

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebSocketEnabled = bVal
			applog.Infof("configuration: Overriding transport.websocket_enabled from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring ENV_WS_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		applog.Infof("configuration: Overriding transport.websocket_address from env: %s", val)
	}
}
