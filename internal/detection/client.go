// Package detection is a thin RPC boundary to the out-of-process image
// analysis service. It performs no local inference: one image goes up as a
// multipart upload, a re-encoded image plus bounding-box detections come back.
package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/httpclient"
	"github.com/obralens/obralens/internal/logging"
	"github.com/obralens/obralens/internal/model"
)

// ProcessImageResponse is the detection service's synchronous reply: the
// processed image re-encoded as base64 plus the detections found in it.
type ProcessImageResponse struct {
	ProcessedImageBase64 string            `json:"processed_image_base64"`
	Detections           []model.Detection `json:"detections"`
}

// switchModelResponse is the reply to a model hot-swap request.
type switchModelResponse struct {
	Message string `json:"message"`
}

// ModelName identifies which trained weights the service should serve.
type ModelName string

const (
	ModelBest ModelName = "best"
	ModelLast ModelName = "last"
)

// Valid reports whether the model name is one the service accepts.
func (m ModelName) Valid() bool {
	return m == ModelBest || m == ModelLast
}

// Client calls the external detection service. No retry, no backoff, no
// circuit breaking: a failed call is reported once and the caller decides.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *slog.Logger
}

// NewClient creates a detection client for the service at baseURL.
func NewClient(baseURL string, hc *httpclient.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  logging.ForService("detection"),
	}
}

// ProcessImage uploads the image at path and returns the processed result.
// Any transport failure or non-2xx response is normalized to a single
// image-processing error.
func (c *Client) ProcessImage(ctx context.Context, path string) (*ProcessImageResponse, error) {
	url := c.baseURL + "/process-image/"

	resp, err := c.http.PostFile(ctx, url, "file", path)
	if err != nil {
		return nil, c.processingFailed(err, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.processingFailed(
			fmt.Errorf("detection service returned status %d: %s", resp.StatusCode, string(body)), path)
	}

	result := &ProcessImageResponse{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, c.processingFailed(fmt.Errorf("decoding detection response: %w", err), path)
	}

	c.logger.Debug("image processed", "path", path, "detections", len(result.Detections))
	return result, nil
}

// SwitchModel asks the service to hot-swap its active model and returns the
// service's status message.
func (c *Client) SwitchModel(ctx context.Context, name ModelName) (string, error) {
	if !name.Valid() {
		return "", errors.Newf("unknown model name %q", name).
			Component("detection").
			Category(errors.CategoryValidation).
			Build()
	}

	url := fmt.Sprintf("%s/switch-model/%s", c.baseURL, name)
	resp, err := c.http.Get(ctx, url)
	if err != nil {
		return "", errors.Newf("switching model: %w", err).
			Component("detection").
			Category(errors.CategoryNetwork).
			Context("model", string(name)).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("detection service returned status %d for model switch", resp.StatusCode).
			Component("detection").
			Category(errors.CategoryNetwork).
			Context("model", string(name)).
			Build()
	}

	parsed := &switchModelResponse{}
	if err := json.NewDecoder(resp.Body).Decode(parsed); err != nil {
		return "", errors.Newf("decoding model switch response: %w", err).
			Component("detection").
			Category(errors.CategoryNetwork).
			Build()
	}
	return parsed.Message, nil
}

// processingFailed collapses every upstream failure mode into one error the
// review pipeline can record per image.
func (c *Client) processingFailed(err error, path string) error {
	c.logger.Warn("image processing failed", "path", path, "error", err)
	return errors.Newf("failed to process image: %w", err).
		Component("detection").
		Category(errors.CategoryImageProcessing).
		Context("image_path", path).
		Build()
}
