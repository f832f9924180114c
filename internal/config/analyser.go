package config

import (
	"time"

	"analyser/internal/analysis"
	applog "analyser/internal/log"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML fills fields missing from a YAML analyser entry with the
// reference defaults, so an entry may override only what differs.
func (a *AnalyserConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain AnalyserConfig
	p := plain(DefaultAnalyserConfig(""))
	if err := value.Decode(&p); err != nil {
		return err
	}
	*a = AnalyserConfig(p)
	return nil
}

// EngineConfig maps the analyser onto an engine configuration using the
// shared sample rate and ring capacity.
func (a AnalyserConfig) EngineConfig(sampleRate float64, ringCapacity int) analysis.Config {
	return analysis.Config{
		FrameSize:             a.FrameSize,
		SmoothingTimeConstant: a.SmoothingTimeConstant,
		MinDecibels:           a.MinDecibels,
		MaxDecibels:           a.MaxDecibels,
		RingCapacity:          ringCapacity,
		SampleRate:            sampleRate,
	}
}

// Level resolves the effective log level. Debug wins over LogLevel.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, ok := applog.ParseLevel(c.LogLevel)
	if !ok && c.LogLevel != "" {
		applog.Warnf("configuration: Unknown log_level %q, using %s", c.LogLevel, level)
	}
	return level
}

// RecordingPath returns the file the recorder writes to. Without an explicit
// output_file a timestamped name inside output_dir is used.
func (c *Config) RecordingPath(now time.Time) string {
	if c.Recording.OutputFile != "" {
		return c.Recording.OutputFile
	}
	dir := c.Recording.OutputDir
	if dir == "" {
		dir = DefaultRecordingDir
	}
	return dir + "/recording-" + now.Format("20060102-150405") + ".wav"
}
