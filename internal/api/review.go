package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/review"
)

// ProcessImages accepts a multipart batch under the "images" field, runs each
// file through the detection service and stages the batch for review. Partial
// failures still return 200 with the failed files listed.
func (c *Controller) ProcessImages(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, err, "Invalid multipart form", http.StatusBadRequest)
	}
	files := form.File["images"]
	if len(files) == 0 {
		return c.HandleError(ctx, nil, "No image files uploaded", http.StatusBadRequest)
	}

	// Spool the uploads to disk; the pipeline owns the temp files from here.
	uploads := make([]review.Upload, 0, len(files))
	for _, fh := range files {
		path, err := c.spoolUpload(fh)
		if err != nil {
			for _, u := range uploads {
				_ = os.Remove(u.Path)
			}
			return c.HandleError(ctx, err, "Failed to read uploaded file", http.StatusInternalServerError)
		}
		uploads = append(uploads, review.Upload{Path: path, OriginalFileName: fh.Filename})
	}

	result, err := c.Review.Stage(ctx.Request().Context(), uploads)
	if err != nil {
		if result != nil && len(result.Errors) > 0 {
			// Every image failed; surface the per-file errors.
			return ctx.JSON(http.StatusInternalServerError, result)
		}
		return c.ServiceError(ctx, err, "Failed to process images")
	}
	return ctx.JSON(http.StatusOK, result)
}

// spoolUpload copies one multipart file into the staging root as a temp file.
func (c *Controller) spoolUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	dir := filepath.Join(c.Settings.Storage.StagingRoot, "incoming")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+filepath.Ext(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", err
	}
	return path, dst.Close()
}

// GetReview returns the staged batch for human review.
func (c *Controller) GetReview(ctx echo.Context) error {
	batch, err := c.Review.GetBatch(ctx.Param("reviewId"))
	if err != nil {
		return c.ServiceError(ctx, err, "Pending review not found")
	}
	return ctx.JSON(http.StatusOK, batch)
}

// GetReviewImage streams one staged image.
func (c *Controller) GetReviewImage(ctx echo.Context) error {
	path, err := c.Review.ImagePath(ctx.Param("reviewId"), ctx.Param("imageId"))
	if err != nil {
		return c.ServiceError(ctx, err, "Staged image not found")
	}
	return ctx.File(path)
}

// SaveReviewRequest names the commit target for a staged batch.
type SaveReviewRequest struct {
	ProjectID    string `json:"projectId"`
	InspectionID string `json:"inspectionId"`
}

// SaveReview commits a staged batch into a project inspection.
func (c *Controller) SaveReview(ctx echo.Context) error {
	req := &SaveReviewRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.ProjectID == "" || req.InspectionID == "" {
		return c.HandleError(ctx, nil, "projectId and inspectionId are required", http.StatusBadRequest)
	}

	result, err := c.Review.Commit(ctx.Request().Context(), ctx.Param("reviewId"), req.ProjectID, req.InspectionID)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to save review")
	}
	c.invalidateProjectCache()
	return ctx.JSON(http.StatusOK, result)
}
