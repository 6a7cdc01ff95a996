// Package inpaint wraps an external generative inpainting service that
// edits only the masked region of an image.
package inpaint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/prodimg/studio/codec"
	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
	"github.com/prodimg/studio/utils"
)

// Config holds the service's connection, retry, and payload parameters.
type Config struct {
	Endpoint        string
	APIKey          string
	CanvasSize      int
	MaxPayloadBytes int64
	MaxAttempts     int
	BackoffBase     time.Duration
	Timeout         time.Duration
}

// Client calls the inpainting service.  Safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger core.Logger
}

// NewClient creates a Client.
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
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 4 * 1024 * 1024
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

// editResponse is the service's JSON body; data[0].url names the result.
type editResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Edit sends image, mask, and prompt; the service rewrites only the masked
// region.  Validation happens before any network call, and there is no
// local fallback: exhausted retries are surfaced to the caller as-is.
func (c *Client) Edit(ctx context.Context, img, mask *core.Artifact, prompt string) (*core.Artifact, error) {
	if err := c.validate(img, mask); err != nil {
		return nil, err
	}
	if c.cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.CategoryService, "inpaint.edit", apperrors.ErrMissingAPIKey)
	}

	var out *core.Artifact
	err := utils.Retry(ctx, c.cfg.MaxAttempts, c.cfg.BackoffBase, func(attempt int) error {
		result, attemptErr := c.attempt(ctx, img, mask, prompt)
		if attemptErr != nil {
			c.logger.Warn("inpaint.attempt_failed", "attempt", attempt, "error", attemptErr.Error())
			return attemptErr
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryService, "inpaint.edit",
			fmt.Errorf("%w: %v", apperrors.ErrRetriesExhausted, err))
	}
	return out, nil
}

// validate enforces the service's pre-flight contract: both buffers PNG,
// exactly canvas-sized, four-channel, and jointly under the payload ceiling.
// Silently resizing before a destructive edit would alter fidelity, so a
// too-large payload is an error rather than a downscale.
func (c *Client) validate(img, mask *core.Artifact) error {
	for name, a := range map[string]*core.Artifact{"image": img, "mask": mask} {
		if a == nil || len(a.Data) == 0 {
			return apperrors.New(apperrors.CategoryValidation, "inpaint.validate",
				fmt.Errorf("%s: %w", name, apperrors.ErrEmptyInput))
		}
		if a.Format != core.FormatPNG {
			return apperrors.New(apperrors.CategoryValidation, "inpaint.validate",
				fmt.Errorf("%s must be PNG, got %s", name, a.Format))
		}
		if a.Meta.Width != c.cfg.CanvasSize || a.Meta.Height != c.cfg.CanvasSize {
			return apperrors.New(apperrors.CategoryValidation, "inpaint.validate",
				fmt.Errorf("%s must be %dx%d, got %dx%d",
					name, c.cfg.CanvasSize, c.cfg.CanvasSize, a.Meta.Width, a.Meta.Height))
		}
		if !a.Meta.HasAlpha {
			return apperrors.New(apperrors.CategoryValidation, "inpaint.validate",
				fmt.Errorf("%s must carry a 4-channel RGBA buffer", name))
		}
	}
	if int64(len(img.Data))+int64(len(mask.Data)) > c.cfg.MaxPayloadBytes {
		return apperrors.New(apperrors.CategoryPayload, "inpaint.validate", apperrors.ErrPayloadTooLarge)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, img, mask *core.Artifact, prompt string) (*core.Artifact, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	imagePart, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "inpaint.form", err)
	}
	if _, err := imagePart.Write(img.Data); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "inpaint.form", err)
	}
	maskPart, err := writer.CreateFormFile("mask", "mask.png")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "inpaint.form", err)
	}
	if _, err := maskPart.Write(mask.Data); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "inpaint.form", err)
	}
	_ = writer.WriteField("prompt", prompt)
	_ = writer.WriteField("n", "1")
	_ = writer.WriteField("size", fmt.Sprintf("%dx%d", c.cfg.CanvasSize, c.cfg.CanvasSize))
	_ = writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "inpaint.request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Transient("inpaint.post", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Transient("inpaint.post",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed editResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.Transient("inpaint.parse", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return nil, apperrors.Transient("inpaint.parse", fmt.Errorf("response carries no result url"))
	}

	return c.download(ctx, parsed.Data[0].URL)
}

// download fetches the result image named by the service's response.
func (c *Client) download(ctx context.Context, url string) (*core.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "inpaint.download", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Transient("inpaint.download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Transient("inpaint.download",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transient("inpaint.download", err)
	}
	decoded, _, err := codec.Decode(raw)
	if err != nil {
		return nil, apperrors.Transient("inpaint.decode", err)
	}
	return codec.NewArtifact(decoded)
}

var _ core.Inpainter = (*Client)(nil)
