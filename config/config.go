// Package config defines YAML configuration of the engine and the plugin
// chain. It uses strict decoding and explicit defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pipelined.dev/host"
	"pipelined.dev/host/plugin"
)

// Config holds the complete host configuration.
type Config struct {
	Engine  EngineConfig   `yaml:"engine"`
	Plugins []PluginConfig `yaml:"plugins,omitempty"`
}

// EngineConfig defines engine settings and activation.
type EngineConfig struct {
	SampleRate      uint32        `yaml:"sample_rate"`
	MinFrames       int           `yaml:"min_frames"`
	MaxFrames       int           `yaml:"max_frames"`
	InChannels      int           `yaml:"in_channels"`
	OutChannels     int           `yaml:"out_channels"`
	NoteCapacity    int           `yaml:"note_capacity"`
	EventCapacity   int           `yaml:"event_capacity"`
	IdleInterval    time.Duration `yaml:"idle_interval"`
	GCInterval      time.Duration `yaml:"gc_interval"`
	DeclickDuration time.Duration `yaml:"declick"`
}

// PluginConfig defines a plugin of the chain.
type PluginConfig struct {
	ID       string             `yaml:"id"`
	Bypassed bool               `yaml:"bypassed,omitempty"`
	Params   map[uint32]float64 `yaml:"params,omitempty"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration, applies defaults and validates it. Unknown
// fields are rejected, empty document results in default configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns configuration with default engine settings and no
// plugins.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// setDefaults applies explicit default values to unset fields.
func (c *Config) setDefaults() {
	defaults := host.DefaultSettings()
	e := &c.Engine
	if e.SampleRate == 0 {
		e.SampleRate = 44100
	}
	if e.MaxFrames == 0 {
		e.MaxFrames = 512
	}
	if e.MinFrames == 0 {
		e.MinFrames = 1
	}
	if e.InChannels == 0 {
		e.InChannels = defaults.InChannels
	}
	if e.OutChannels == 0 {
		e.OutChannels = defaults.OutChannels
	}
	if e.NoteCapacity == 0 {
		e.NoteCapacity = defaults.NoteCapacity
	}
	if e.EventCapacity == 0 {
		e.EventCapacity = defaults.EventCapacity
	}
	if e.IdleInterval == 0 {
		e.IdleInterval = defaults.IdleInterval
	}
	if e.GCInterval == 0 {
		e.GCInterval = defaults.GCInterval
	}
	if e.DeclickDuration == 0 {
		e.DeclickDuration = defaults.DeclickDuration
	}
}

// Settings returns engine settings.
func (e EngineConfig) Settings() host.Settings {
	return host.Settings{
		InChannels:      e.InChannels,
		OutChannels:     e.OutChannels,
		NoteCapacity:    e.NoteCapacity,
		EventCapacity:   e.EventCapacity,
		IdleInterval:    e.IdleInterval,
		GCInterval:      e.GCInterval,
		DeclickDuration: e.DeclickDuration,
	}
}

// Activation returns engine activation settings.
func (e EngineConfig) Activation() plugin.ActivateSettings {
	return plugin.ActivateSettings{
		SampleRate: e.SampleRate,
		MinFrames:  e.MinFrames,
		MaxFrames:  e.MaxFrames,
	}
}
