package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 1024, cfg.CanvasSize)
	assert.Equal(t, RemoverHTTP, cfg.Remover)
	assert.NotEmpty(t, cfg.Prompt)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("STUDIO_CANVAS_SIZE", "512")
	t.Setenv("STUDIO_REMOVER", "none")
	t.Setenv("STUDIO_MAX_WIDTH_FRAC", "0.5")
	t.Setenv("STUDIO_BACKOFF_BASE", "250ms")
	t.Setenv("STUDIO_INVERT_MASK", "true")
	t.Setenv("REMOVEBG_API_KEY", "rk")
	t.Setenv("INPAINT_API_KEY", "ik")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.CanvasSize)
	assert.Equal(t, RemoverNone, cfg.Remover)
	assert.Equal(t, 0.5, cfg.MaxWidthFrac)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffBase)
	assert.True(t, cfg.InvertMask)
	assert.Equal(t, "rk", cfg.RemoveBG.APIKey)
	assert.Equal(t, "ik", cfg.Inpaint.APIKey)
}

func TestLoadFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("STUDIO_CANVAS_SIZE", "not-a-number")
	t.Setenv("STUDIO_MAX_WIDTH_FRAC", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default().CanvasSize, cfg.CanvasSize)
	assert.Equal(t, Default().MaxWidthFrac, cfg.MaxWidthFrac)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero canvas", func(c *Config) { c.CanvasSize = 0 }},
		{"width frac above one", func(c *Config) { c.MaxWidthFrac = 1.5 }},
		{"height frac zero", func(c *Config) { c.MaxHeightFrac = 0 }},
		{"negative bottom margin", func(c *Config) { c.BottomMarginFrac = -0.1 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"unknown remover", func(c *Config) { c.Remover = "magic" }},
		{"zero payload ceiling", func(c *Config) { c.MaxPayloadBytes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
