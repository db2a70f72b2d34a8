package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// Page extraction
	ExtractWorkers int

	// Noise filter tunables. The occurrence threshold has no single
	// correct value, so it is exposed rather than hard-coded.
	NoiseRatio          float64
	NoiseMinOccurrences int
	NoiseQuantum        float64
	NoiseMarginFraction float64

	// Classifier
	SizeTolerance float64

	// Reflow
	PitchFactor   float64
	IndentEpsilon float64

	// Page image rendering
	RenderTool    string
	RenderDPI     int
	RenderQuality int

	// Preview server
	ListenAddr string
}

func Load() Config {
	cfg := Config{
		ExtractWorkers: envInt("STAHLDECK_EXTRACT_WORKERS", 4),

		NoiseRatio:          envFloat("STAHLDECK_NOISE_RATIO", 0.5),
		NoiseMinOccurrences: envInt("STAHLDECK_NOISE_MIN_OCCURRENCES", 3),
		NoiseQuantum:        envFloat("STAHLDECK_NOISE_QUANTUM", 6.0),
		NoiseMarginFraction: envFloat("STAHLDECK_NOISE_MARGIN_FRACTION", 0.08),

		SizeTolerance: envFloat("STAHLDECK_SIZE_TOLERANCE", 0.05),

		PitchFactor:   envFloat("STAHLDECK_PITCH_FACTOR", 1.5),
		IndentEpsilon: envFloat("STAHLDECK_INDENT_EPSILON", 8.0),

		RenderTool:    envOr("STAHLDECK_RENDER_TOOL", "pdftoppm"),
		RenderDPI:     envInt("STAHLDECK_RENDER_DPI", 75),
		RenderQuality: envInt("STAHLDECK_RENDER_QUALITY", 75),

		ListenAddr: envOr("STAHLDECK_LISTEN_ADDR", ":8090"),
	}

	if cfg.ExtractWorkers <= 0 {
		cfg.ExtractWorkers = 4
	}
	if cfg.NoiseRatio <= 0 || cfg.NoiseRatio > 1 {
		cfg.NoiseRatio = 0.5
	}
	if cfg.NoiseMinOccurrences < 2 {
		cfg.NoiseMinOccurrences = 2
	}
	if cfg.SizeTolerance <= 0 {
		cfg.SizeTolerance = 0.05
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 75
	}
	if cfg.RenderQuality <= 0 || cfg.RenderQuality > 100 {
		cfg.RenderQuality = 75
	}

	return cfg
}

func (c Config) Validate() error {
	if c.PitchFactor <= 1 {
		return fmt.Errorf("STAHLDECK_PITCH_FACTOR must be greater than 1")
	}
	if c.IndentEpsilon <= 0 {
		return fmt.Errorf("STAHLDECK_INDENT_EPSILON must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
