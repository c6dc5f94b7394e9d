package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/model"
)

func newGenerator(t *testing.T) (*Generator, datastore.Interface, string) {
	t.Helper()
	uploads := t.TempDir()
	store := datastore.New(filepath.Join(t.TempDir(), "db.json"))
	return NewGenerator(store, uploads, 2*time.Minute), store, uploads
}

func seed(t *testing.T, store datastore.Interface, uploads string) (projectID, inspectionID string) {
	t.Helper()
	dir := filepath.Join(uploads, "processed_images", "proj-1", "insp-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img-1.jpeg"), []byte("jpeg-bytes"), 0o644))

	project := model.Project{
		ID:            "proj-1",
		UserID:        "user-1",
		Name:          "Harbor Terminal",
		Address:       "Pier 4",
		CoverImageURL: "/files/projects/cover.png",
		BIMModelURL:   "/files/projects/model.ifc",
		Inspections: []model.Inspection{{
			ID:                    "insp-1",
			InspectionType:        "structural",
			InspectionObjective:   "crane rail check",
			InspectionDate:        "2026-08-20",
			InspectionResponsible: "M. Costa",
			Images: []model.Image{
				{
					URL: "/files/processed_images/proj-1/insp-1/img-1.jpeg",
					Detections: []model.Detection{
						{ClassName: "crack", Confidence: 0.92, Box: model.Box{X1: 10, Y1: 10, X2: 50, Y2: 50}},
						{ClassName: "corrosion", Confidence: 0.61, Box: model.Box{X1: 80, Y1: 20, X2: 120, Y2: 90}},
					},
				},
				{
					URL: "/files/processed_images/proj-1/insp-1/missing.jpeg",
					Detections: []model.Detection{
						{ClassName: "crack", Confidence: 0.55},
					},
				},
			},
		}},
	}
	require.NoError(t, store.CreateProject(project))
	return "proj-1", "insp-1"
}

func TestBuildHTML(t *testing.T) {
	g, store, uploads := newGenerator(t)
	projectID, inspectionID := seed(t, store, uploads)

	html, err := g.BuildHTML(projectID, inspectionID)
	require.NoError(t, err)

	assert.Contains(t, html, "Harbor Terminal")
	assert.Contains(t, html, "crane rail check")
	assert.Contains(t, html, "M. Costa")

	// Detection rows with formatted confidence and coordinates.
	assert.Contains(t, html, "crack")
	assert.Contains(t, html, "92.0%")
	assert.Contains(t, html, "61.0%")
	assert.Contains(t, html, "(10, 10)")

	// Existing image is embedded inline; the missing one is flagged.
	assert.Contains(t, html, "data:image/jpeg;base64,")
	assert.Contains(t, html, "no longer available")
}

func TestBuildHTML_ClassCounts(t *testing.T) {
	g, store, uploads := newGenerator(t)
	projectID, inspectionID := seed(t, store, uploads)

	html, err := g.BuildHTML(projectID, inspectionID)
	require.NoError(t, err)

	// 2x crack, 1x corrosion over 2 images.
	assert.Contains(t, html, "<td>crack</td><td>2</td>")
	assert.Contains(t, html, "<td>corrosion</td><td>1</td>")
	assert.Contains(t, html, "<td>2</td><td>3</td>", "images / total defects summary row")
}

func TestBuildHTML_EmptyInspection(t *testing.T) {
	g, store, _ := newGenerator(t)
	require.NoError(t, store.CreateProject(model.Project{
		ID:            "proj-2",
		UserID:        "user-1",
		Name:          "Empty Site",
		CoverImageURL: "/files/projects/c.png",
		BIMModelURL:   "/files/projects/m.ifc",
		Inspections: []model.Inspection{{
			ID:                  "insp-2",
			InspectionObjective: "initial pass",
		}},
	}))

	html, err := g.BuildHTML("proj-2", "insp-2")
	require.NoError(t, err)
	assert.Contains(t, html, "Empty Site")
	assert.Contains(t, html, "<td>0</td><td>0</td>")
}

func TestBuildHTML_NotFound(t *testing.T) {
	g, store, uploads := newGenerator(t)
	projectID, _ := seed(t, store, uploads)

	_, err := g.BuildHTML("ghost", "insp-1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = g.BuildHTML(projectID, "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
