package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RemoverVendor selects the background-removal implementation.
type RemoverVendor string

const (
	RemoverHTTP    RemoverVendor = "http"    // external segmentation service
	RemoverGrabCut RemoverVendor = "grabcut" // local OpenCV GrabCut (gocv build tag)
	RemoverNone    RemoverVendor = "none"    // pass-through; keeps existing alpha
)

// ServiceConfig holds connection parameters for one external service.
type ServiceConfig struct {
	Endpoint string
	APIKey   string
}

// Config is the top-level configuration struct.  All fields have safe
// defaults so callers can start with Default() and override what they need.
type Config struct {
	// Canonical canvas.  All stages after normalization work at
	// CanvasSize×CanvasSize; overridable so tests can run small.
	CanvasSize int

	// Geometry tunables.
	AlphaThreshold   uint8   // foreground when alpha > threshold
	CropPadding      int     // pixels added around the opaque bounding box
	MaxWidthFrac     float64 // product width ceiling as a canvas fraction
	MaxHeightFrac    float64 // product height ceiling as a canvas fraction
	BottomMarginFrac float64 // gap under the product as a canvas fraction
	WhitenThreshold  uint8   // near-white snap threshold for the finalizer
	InvertMask       bool    // flip the editable-region polarity

	// Inpainting instruction sent with every edit call.
	Prompt string

	// Adapter selection and connection parameters.
	Remover  RemoverVendor
	RemoveBG ServiceConfig
	Inpaint  ServiceConfig

	// Shared retry policy for both adapters.
	MaxAttempts    int
	BackoffBase    time.Duration
	RequestTimeout time.Duration

	// Payload ceilings.
	MaxPayloadBytes int64 // combined image+mask ceiling for inpaint calls
	MaxSourceBytes  int64 // input photo ceiling; 0 = no limit

	// Working directory for per-invocation artifacts.
	WorkDir     string
	ArtifactTTL time.Duration // janitor deletes run files older than this

	// Optional blob publishing of finished images.
	AzureAccount   string
	AzureKey       string
	AzureContainer string

	LogLevel string // "debug", "info", "warn", "error"
}

// Default returns a Config populated with production defaults.
func Default() Config {
	return Config{
		CanvasSize:       1024,
		AlphaThreshold:   0,
		CropPadding:      10,
		MaxWidthFrac:     0.75,
		MaxHeightFrac:    0.65,
		BottomMarginFrac: 0.12,
		WhitenThreshold:  240,
		Prompt:           "place the product on a clean white studio background with a soft natural shadow",
		Remover:          RemoverHTTP,
		MaxAttempts:      3,
		BackoffBase:      time.Second,
		RequestTimeout:   30 * time.Second,
		MaxPayloadBytes:  4 * 1024 * 1024,
		MaxSourceBytes:   32 * 1024 * 1024,
		WorkDir:          os.TempDir(),
		ArtifactTTL:      24 * time.Hour,
		LogLevel:         "info",
	}
}

// LoadFromEnv builds a Config from environment variables on top of the
// defaults.  A .env file is honoured when present.
func LoadFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	cfg.CanvasSize = intOrDefault("STUDIO_CANVAS_SIZE", cfg.CanvasSize)
	cfg.AlphaThreshold = uint8(intOrDefault("STUDIO_ALPHA_THRESHOLD", int(cfg.AlphaThreshold)))
	cfg.CropPadding = intOrDefault("STUDIO_CROP_PADDING", cfg.CropPadding)
	cfg.MaxWidthFrac = floatOrDefault("STUDIO_MAX_WIDTH_FRAC", cfg.MaxWidthFrac)
	cfg.MaxHeightFrac = floatOrDefault("STUDIO_MAX_HEIGHT_FRAC", cfg.MaxHeightFrac)
	cfg.BottomMarginFrac = floatOrDefault("STUDIO_BOTTOM_MARGIN_FRAC", cfg.BottomMarginFrac)
	cfg.WhitenThreshold = uint8(intOrDefault("STUDIO_WHITEN_THRESHOLD", int(cfg.WhitenThreshold)))
	cfg.InvertMask = boolOrDefault("STUDIO_INVERT_MASK", cfg.InvertMask)
	cfg.Prompt = stringOrDefault("STUDIO_PROMPT", cfg.Prompt)
	cfg.Remover = RemoverVendor(stringOrDefault("STUDIO_REMOVER", string(cfg.Remover)))
	cfg.RemoveBG.Endpoint = stringOrDefault("REMOVEBG_ENDPOINT", cfg.RemoveBG.Endpoint)
	cfg.RemoveBG.APIKey = os.Getenv("REMOVEBG_API_KEY")
	cfg.Inpaint.Endpoint = stringOrDefault("INPAINT_ENDPOINT", cfg.Inpaint.Endpoint)
	cfg.Inpaint.APIKey = os.Getenv("INPAINT_API_KEY")
	cfg.MaxAttempts = intOrDefault("STUDIO_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.BackoffBase = durationOrDefault("STUDIO_BACKOFF_BASE", cfg.BackoffBase)
	cfg.RequestTimeout = durationOrDefault("STUDIO_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.WorkDir = stringOrDefault("STUDIO_WORK_DIR", cfg.WorkDir)
	cfg.ArtifactTTL = durationOrDefault("STUDIO_ARTIFACT_TTL", cfg.ArtifactTTL)
	cfg.AzureAccount = os.Getenv("AZURE_STORAGE_ACCOUNT")
	cfg.AzureKey = os.Getenv("AZURE_STORAGE_KEY")
	cfg.AzureContainer = stringOrDefault("AZURE_STORAGE_CONTAINER", cfg.AzureContainer)
	cfg.LogLevel = stringOrDefault("LOG_LEVEL", cfg.LogLevel)

	return cfg, Validate(cfg)
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.CanvasSize <= 0 {
		return errors.New("config: CanvasSize must be positive")
	}
	if c.MaxWidthFrac <= 0 || c.MaxWidthFrac > 1 {
		return errors.New("config: MaxWidthFrac must be in (0, 1]")
	}
	if c.MaxHeightFrac <= 0 || c.MaxHeightFrac > 1 {
		return errors.New("config: MaxHeightFrac must be in (0, 1]")
	}
	if c.BottomMarginFrac < 0 || c.BottomMarginFrac >= 1 {
		return errors.New("config: BottomMarginFrac must be in [0, 1)")
	}
	if c.MaxAttempts < 1 {
		return errors.New("config: MaxAttempts must be at least 1")
	}
	if c.BackoffBase < 0 {
		return errors.New("config: BackoffBase must not be negative")
	}
	if c.MaxPayloadBytes <= 0 {
		return errors.New("config: MaxPayloadBytes must be positive")
	}
	switch c.Remover {
	case RemoverHTTP, RemoverGrabCut, RemoverNone:
	default:
		return errors.New("config: unknown Remover vendor " + string(c.Remover))
	}
	return nil
}

func stringOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func floatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func boolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func durationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	}
	return def
}
