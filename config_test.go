package vodom

import (
	"errors"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.FastThreshold = 0 }},
		{"ring too long", func(c *Config) { c.FastRing = 17 }},
		{"ring zero", func(c *Config) { c.FastRing = 0 }},
		{"corner cap below grid width", func(c *Config) { c.MaxCorners = 32 }},
		{"bad ref blend", func(c *Config) { c.RefBlend = 3 }},
		{"bad query blend", func(c *Config) { c.QueryBlend = 0 }},
		{"zero bit budget", func(c *Config) { c.MaxBits = 0 }},
		{"bit budget over descriptor", func(c *Config) { c.MaxBits = 300 }},
		{"leaves not power of two", func(c *Config) { c.TreeLeaves = 500 }},
		{"single leaf", func(c *Config) { c.TreeLeaves = 1 }},
		{"levels deeper than tree", func(c *Config) { c.TreeLevels = 12 }},
		{"zero levels", func(c *Config) { c.TreeLevels = 0 }},
		{"no iterations", func(c *Config) { c.Iterations = 0 }},
		{"no hypotheses", func(c *Config) { c.Hypotheses = 0 }},
		{"zero q cutoff", func(c *Config) { c.QMin = 0 }},
		{"zero bound", func(c *Config) { c.Bound = 0 }},
		{"zero depth cutoff", func(c *Config) { c.ZMin = 0 }},
		{"zero depth scale", func(c *Config) { c.DepthScale = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrBadConfig) {
				t.Fatalf("Validate() = %v, want ErrBadConfig", err)
			}
		})
	}
}

func TestConfigValidateAltered(t *testing.T) {
	// Legitimate overrides stay valid.
	c := DefaultConfig()
	c.RefBlend = 9
	c.QueryBlend = 5
	c.TreeLeaves = 256
	c.TreeLevels = 4
	c.Rotations = false
	c.Iterations = 4
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}
