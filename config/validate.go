package config

import (
	"fmt"
)

// Validate checks that all configuration values are within acceptable
// ranges. Returns an error describing the first validation failure found.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	for i, p := range c.Plugins {
		if p.ID == "" {
			return fmt.Errorf("plugin %d: id is required", i)
		}
	}
	return nil
}

// Validate checks engine configuration values.
func (e *EngineConfig) Validate() error {
	if e.SampleRate < 8000 || e.SampleRate > 384000 {
		return fmt.Errorf("sample_rate must be between 8000 and 384000, got %d", e.SampleRate)
	}
	if e.MinFrames < 1 || e.MinFrames > e.MaxFrames {
		return fmt.Errorf("min_frames must be between 1 and max_frames %d, got %d", e.MaxFrames, e.MinFrames)
	}
	if e.MaxFrames > 8192 {
		return fmt.Errorf("max_frames must not exceed 8192, got %d", e.MaxFrames)
	}
	if e.InChannels < 0 || e.OutChannels < 1 {
		return fmt.Errorf("at least one output channel is required, got %d inputs and %d outputs", e.InChannels, e.OutChannels)
	}
	if e.IdleInterval < 0 || e.GCInterval < 0 || e.DeclickDuration < 0 {
		return fmt.Errorf("intervals must be positive")
	}
	return nil
}
