// Package rembg provides BackgroundRemover implementations: an HTTP client
// for an external segmentation service and a local OpenCV GrabCut fallback
// behind the gocv build tag.
package rembg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/prodimg/studio/codec"
	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
	"github.com/prodimg/studio/raster"
	"github.com/prodimg/studio/utils"
)

// Config holds the HTTP vendor's connection and retry parameters.
type Config struct {
	Endpoint    string
	APIKey      string
	CanvasSize  int
	MaxAttempts int
	BackoffBase time.Duration
	Timeout     time.Duration
}

// Client calls an external background-removal service.  Safe for concurrent
// use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger core.Logger
}

// NewClient creates a Client.  Timeout bounds each individual attempt,
// independent of the backoff delays.
func NewClient(cfg Config, logger core.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// SetLogger replaces the client's logger.  Call before issuing requests.
func (c *Client) SetLogger(l core.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Remove sends the normalized image to the segmentation service and returns
// the cut-out subject re-fitted to the canonical canvas.  Exhausted retries
// surface as a service error; the pipeline stage decides the fallback.
func (c *Client) Remove(ctx context.Context, img *core.Artifact) (*core.Artifact, error) {
	if c.cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.CategoryService, "rembg.remove", apperrors.ErrMissingAPIKey)
	}

	var out *core.Artifact
	err := utils.Retry(ctx, c.cfg.MaxAttempts, c.cfg.BackoffBase, func(attempt int) error {
		result, attemptErr := c.attempt(ctx, img)
		if attemptErr != nil {
			c.logger.Warn("rembg.attempt_failed", "attempt", attempt, "error", attemptErr.Error())
			return attemptErr
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryService, "rembg.remove",
			fmt.Errorf("%w: %v", apperrors.ErrRetriesExhausted, err))
	}
	return out, nil
}

// attempt performs one independent request; no partial result is reused.
func (c *Client) attempt(ctx context.Context, img *core.Artifact) (*core.Artifact, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image_file", "image.png")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "rembg.form", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "rembg.form", err)
	}
	_ = writer.WriteField("size", "auto")
	_ = writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "rembg.request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Transient("rembg.post", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Transient("rembg.post",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transient("rembg.read", err)
	}

	// The service may return the subject at any size, with or without an
	// alpha channel; re-fit to the canonical canvas before handing back.
	decoded, _, err := codec.Decode(raw)
	if err != nil {
		return nil, apperrors.Transient("rembg.decode", err)
	}
	fitted := raster.ContainFit(decoded, c.cfg.CanvasSize, raster.Transparent)
	return codec.NewArtifact(fitted)
}

var _ core.BackgroundRemover = (*Client)(nil)
