// Package review implements the staging pipeline for analyzed images.
//
// Uploaded images are run through the detection service and the results are
// staged in a per-batch directory under the staging root, each image paired
// with a same-named JSON sidecar. A staged batch waits there for human review
// until it is committed into a project inspection, at which point the files
// move to permanent storage and the batch directory is removed. Batches that
// are never committed accumulate; there is no TTL or garbage collection.
package review

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/detection"
	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/logging"
	"github.com/obralens/obralens/internal/model"
	"github.com/obralens/obralens/internal/observability/metrics"
)

// Staged images are always stored as JPEG; the detection service re-encodes
// whatever it receives.
const stagedImageExt = ".jpeg"

// safeIDPattern restricts batch and image identifiers to the characters our
// own generator produces, so identifiers from the URL can never escape the
// staging root.
var safeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// Detector is the slice of the detection client the pipeline needs.
type Detector interface {
	ProcessImage(ctx context.Context, path string) (*detection.ProcessImageResponse, error)
}

// Upload is one raw image handed to Stage: a temporary file on disk plus the
// name the client gave it.
type Upload struct {
	Path             string
	OriginalFileName string
}

// StageError records one image that could not be processed. Sibling images
// are unaffected.
type StageError struct {
	FileName string `json:"fileName"`
	Error    string `json:"error"`
}

// StageResult is the outcome of staging a batch.
type StageResult struct {
	ReviewID string       `json:"reviewId"`
	Staged   int          `json:"staged"`
	Errors   []StageError `json:"errors,omitempty"`
	Warnings []string     `json:"warnings,omitempty"` // best-effort cleanup failures
}

// PendingImage is one staged image awaiting review.
type PendingImage struct {
	ImageID          string            `json:"imageId"`
	OriginalFileName string            `json:"originalFileName"`
	Detections       []model.Detection `json:"detections"`
}

// Batch is the reconstructed content of a staged batch.
type Batch struct {
	ID     string         `json:"id"`
	Images []PendingImage `json:"images"`
}

// CommitResult is the outcome of committing a batch into an inspection.
type CommitResult struct {
	Committed int      `json:"committed"`
	Warnings  []string `json:"warnings,omitempty"`
}

// sidecar is the JSON document stored next to each staged image.
type sidecar struct {
	Detections       []model.Detection `json:"detections"`
	OriginalFileName string            `json:"originalFileName"`
}

// Config wires a Pipeline.
type Config struct {
	StagingRoot string // batches live under <StagingRoot>/<batchID>/
	UploadsDir  string // committed images land under <UploadsDir>/processed_images/
	Workers     int    // cap on concurrent detection calls during Stage
	Detector    Detector
	Store       datastore.Interface
	Metrics     *metrics.ReviewMetrics // optional
}

// Pipeline stages uploaded images for review and commits reviewed batches.
type Pipeline struct {
	stagingRoot string
	uploadsDir  string
	workers     int
	detector    Detector
	store       datastore.Interface
	metrics     *metrics.ReviewMetrics
	logger      *slog.Logger
}

// NewPipeline creates a review pipeline.
func NewPipeline(cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		stagingRoot: cfg.StagingRoot,
		uploadsDir:  cfg.UploadsDir,
		workers:     workers,
		detector:    cfg.Detector,
		store:       cfg.Store,
		metrics:     cfg.Metrics,
		logger:      logging.ForService("review"),
	}
}

// stagedImage is the per-upload outcome collected by the staging pool,
// keyed by input position so results keep upload order.
type stagedImage struct {
	err     error
	warning string
}

// Stage processes a batch of uploads through the detection service and
// materializes the results under a fresh batch directory.
//
// Per-image failures are isolated: they are recorded in the result's error
// list and processing continues. Detection calls run on a bounded worker
// pool; results are collected in input order. The original uploaded temp
// files are always deleted best-effort, with failures reported as warnings.
//
// If every image fails the whole call fails and the returned result still
// carries the per-image errors.
func (p *Pipeline) Stage(ctx context.Context, uploads []Upload) (*StageResult, error) {
	if len(uploads) == 0 {
		return nil, errors.Newf("no image files uploaded").
			Component("review").
			Category(errors.CategoryValidation).
			Build()
	}

	reviewID := uuid.NewString()
	batchDir := filepath.Join(p.stagingRoot, reviewID)
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		return nil, errors.Newf("creating batch directory: %w", err).
			Component("review").
			Category(errors.CategoryFileIO).
			Context("review_id", reviewID).
			Build()
	}

	results := make([]stagedImage, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := range uploads {
		g.Go(func() error {
			results[i] = p.stageOne(gctx, batchDir, uploads[i])
			return nil
		})
	}
	// Workers never return errors; per-image failures live in results.
	_ = g.Wait()

	result := &StageResult{ReviewID: reviewID}
	for i := range results {
		switch {
		case results[i].err != nil:
			result.Errors = append(result.Errors, StageError{
				FileName: uploads[i].OriginalFileName,
				Error:    results[i].err.Error(),
			})
		default:
			result.Staged++
		}
		if results[i].warning != "" {
			result.Warnings = append(result.Warnings, results[i].warning)
		}
	}

	if p.metrics != nil {
		p.metrics.BatchesStaged.Inc()
	}

	if result.Staged == 0 {
		return result, errors.Newf("all %d uploaded files failed to process", len(uploads)).
			Component("review").
			Category(errors.CategoryImageProcessing).
			Context("review_id", reviewID).
			Build()
	}

	p.logger.Info("batch staged",
		"review_id", reviewID,
		"staged", result.Staged,
		"failed", len(result.Errors))
	return result, nil
}

// stageOne runs a single upload through detection and writes the image plus
// its sidecar into the batch directory. The upload's temp file is removed on
// every path.
func (p *Pipeline) stageOne(ctx context.Context, batchDir string, upload Upload) stagedImage {
	var out stagedImage
	defer func() {
		if err := os.Remove(upload.Path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("failed to remove uploaded temp file", "path", upload.Path, "error", err)
			out.warning = fmt.Sprintf("could not remove temp file for %s: %v", upload.OriginalFileName, err)
		}
	}()

	start := time.Now()
	resp, err := p.detector.ProcessImage(ctx, upload.Path)
	if p.metrics != nil {
		p.metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.DetectionFailures.Inc()
		}
		p.logger.Warn("detection failed", "file", upload.OriginalFileName, "error", err)
		out.err = err
		return out
	}

	imageBytes, err := base64.StdEncoding.DecodeString(resp.ProcessedImageBase64)
	if err != nil {
		out.err = errors.Newf("decoding processed image: %w", err).
			Component("review").
			Category(errors.CategoryImageProcessing).
			Context("file", upload.OriginalFileName).
			Build()
		return out
	}

	imageID := uuid.NewString()
	imagePath := filepath.Join(batchDir, imageID+stagedImageExt)
	if err := os.WriteFile(imagePath, imageBytes, 0o644); err != nil {
		out.err = errors.Newf("writing staged image: %w", err).
			Component("review").
			Category(errors.CategoryFileIO).
			Build()
		return out
	}

	meta, err := json.Marshal(sidecar{
		Detections:       resp.Detections,
		OriginalFileName: upload.OriginalFileName,
	})
	if err != nil {
		out.err = errors.Newf("serializing sidecar: %w", err).
			Component("review").
			Category(errors.CategoryFileIO).
			Build()
		return out
	}
	if err := os.WriteFile(filepath.Join(batchDir, imageID+".json"), meta, 0o644); err != nil {
		out.err = errors.Newf("writing sidecar: %w", err).
			Component("review").
			Category(errors.CategoryFileIO).
			Build()
		return out
	}

	if p.metrics != nil {
		p.metrics.ImagesStaged.Inc()
	}
	return out
}

// GetBatch reconstructs a staged batch by pairing each image file with its
// sidecar. Any failure to read or parse the batch collapses to NotFound: the
// caller cannot distinguish "never existed" from "corrupted".
func (p *Pipeline) GetBatch(reviewID string) (*Batch, error) {
	batchDir, err := p.batchDir(reviewID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return nil, p.batchNotFound(reviewID, err)
	}

	batch := &Batch{ID: reviewID, Images: []PendingImage{}}
	for _, entry := range sortedImageEntries(entries) {
		imageID := strings.TrimSuffix(entry, stagedImageExt)

		meta, err := p.readSidecar(batchDir, imageID)
		if err != nil {
			return nil, p.batchNotFound(reviewID, err)
		}

		batch.Images = append(batch.Images, PendingImage{
			ImageID:          imageID,
			OriginalFileName: meta.OriginalFileName,
			Detections:       meta.Detections,
		})
	}
	return batch, nil
}

// ImagePath resolves a staged image by convention and verifies it exists.
func (p *Pipeline) ImagePath(reviewID, imageID string) (string, error) {
	batchDir, err := p.batchDir(reviewID)
	if err != nil {
		return "", err
	}
	if !safeIDPattern.MatchString(imageID) {
		return "", p.batchNotFound(reviewID, fmt.Errorf("invalid image id"))
	}

	path := filepath.Join(batchDir, imageID+stagedImageExt)
	if _, err := os.Stat(path); err != nil {
		return "", errors.Newf("image %q not found in review %q", imageID, reviewID).
			Component("review").
			Category(errors.CategoryNotFound).
			Build()
	}
	return path, nil
}

// Commit moves every staged image of the batch into the permanent store for
// the given project and inspection, appending an Image record per file, then
// removes the batch directory.
//
// Commit fails closed: project and inspection existence are re-validated
// before any file is moved. Mid-loop failures abort with the error surfaced;
// images already moved are not rolled back. Cleanup failures are returned as
// warnings, never as errors.
func (p *Pipeline) Commit(ctx context.Context, reviewID, projectID, inspectionID string) (*CommitResult, error) {
	batchDir, err := p.batchDir(reviewID)
	if err != nil {
		return nil, err
	}

	// Fail closed if the target vanished between stage and commit.
	project, err := p.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if project.FindInspection(inspectionID) == nil {
		return nil, errors.Newf("inspection %q not found in project %q", inspectionID, projectID).
			Component("review").
			Category(errors.CategoryNotFound).
			Build()
	}

	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return nil, p.batchNotFound(reviewID, err)
	}

	finalDir := filepath.Join(p.uploadsDir, "processed_images", projectID, inspectionID)
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return nil, errors.Newf("creating destination directory: %w", err).
			Component("review").
			Category(errors.CategoryFileIO).
			Build()
	}

	result := &CommitResult{}
	for _, entry := range sortedImageEntries(entries) {
		if err := ctx.Err(); err != nil {
			return result, errors.New(err).
				Component("review").
				Category(errors.CategoryGeneric).
				Context("review_id", reviewID).
				Build()
		}

		imageID := strings.TrimSuffix(entry, stagedImageExt)
		meta, err := p.readSidecar(batchDir, imageID)
		if err != nil {
			return result, err
		}

		fileName := imageID + stagedImageExt
		if err := moveFile(filepath.Join(batchDir, fileName), filepath.Join(finalDir, fileName)); err != nil {
			return result, errors.Newf("moving staged image: %w", err).
				Component("review").
				Category(errors.CategoryFileIO).
				Context("image_id", imageID).
				Build()
		}

		image := model.Image{
			URL:        fmt.Sprintf("/files/processed_images/%s/%s/%s", projectID, inspectionID, fileName),
			Detections: meta.Detections,
		}
		if err := p.store.AddImagesToInspection(projectID, inspectionID, []model.Image{image}); err != nil {
			return result, err
		}

		result.Committed++
		if p.metrics != nil {
			p.metrics.ImagesCommitted.Inc()
		}
	}

	if err := os.RemoveAll(batchDir); err != nil {
		p.logger.Warn("failed to remove committed batch directory", "review_id", reviewID, "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not remove batch directory: %v", err))
	}

	if p.metrics != nil {
		p.metrics.BatchesCommitted.Inc()
	}
	p.logger.Info("batch committed",
		"review_id", reviewID,
		"project_id", projectID,
		"inspection_id", inspectionID,
		"images", result.Committed)
	return result, nil
}

// batchDir validates the review identifier and returns the batch directory.
func (p *Pipeline) batchDir(reviewID string) (string, error) {
	if !safeIDPattern.MatchString(reviewID) {
		return "", p.batchNotFound(reviewID, fmt.Errorf("invalid review id"))
	}
	return filepath.Join(p.stagingRoot, reviewID), nil
}

func (p *Pipeline) batchNotFound(reviewID string, cause error) error {
	return errors.Newf("pending review %q not found: %w", reviewID, cause).
		Component("review").
		Category(errors.CategoryNotFound).
		Build()
}

func (p *Pipeline) readSidecar(batchDir, imageID string) (*sidecar, error) {
	data, err := os.ReadFile(filepath.Join(batchDir, imageID+".json"))
	if err != nil {
		return nil, errors.Newf("reading sidecar for %q: %w", imageID, err).
			Component("review").
			Category(errors.CategoryNotFound).
			Build()
	}
	meta := &sidecar{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, errors.Newf("parsing sidecar for %q: %w", imageID, err).
			Component("review").
			Category(errors.CategoryNotFound).
			Build()
	}
	return meta, nil
}

// sortedImageEntries filters a directory listing down to staged image files,
// sorted for deterministic processing order.
func sortedImageEntries(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), stagedImageExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// staging root and the uploads directory live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
