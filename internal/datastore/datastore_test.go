package datastore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/model"
)

func newTestStore(t *testing.T) Interface {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "db.json"))
}

func strPtr(s string) *string { return &s }

func sampleProject(id string) model.Project {
	return model.Project{
		ID:            id,
		UserID:        "user-1",
		Name:          "Bridge North",
		Address:       "Av. Central 100",
		Type:          "bridge",
		Responsible:   "J. Silva",
		CoverImageURL: "projects/cover.png",
		BIMModelURL:   "projects/model.ifc",
		Modules:       model.Modules{Progress: true},
	}
}

func TestCreateAndGetProject(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateProject(sampleProject("proj-1")))

	got, err := store.GetProject("proj-1")
	require.NoError(t, err)
	assert.Equal(t, "Bridge North", got.Name)
	assert.Equal(t, "projects/cover.png", got.CoverImageURL)

	_, err = store.GetProject("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetProjectsByUser(t *testing.T) {
	store := newTestStore(t)
	p1 := sampleProject("proj-1")
	p2 := sampleProject("proj-2")
	p2.UserID = "user-2"
	require.NoError(t, store.CreateProject(p1))
	require.NoError(t, store.CreateProject(p2))

	mine, err := store.GetProjectsByUser("user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "proj-1", mine[0].ID)
}

func TestUpdateProject_MergeSemantics(t *testing.T) {
	store := newTestStore(t)
	p := sampleProject("proj-1")
	p.Inspections = []model.Inspection{{ID: "insp-1", InspectionObjective: "facade", Images: []model.Image{}}}
	require.NoError(t, store.CreateProject(p))

	// Scalar patch must not alter any other top-level field.
	updated, err := store.UpdateProject("proj-1", ProjectPatch{Name: strPtr("Bridge South")})
	require.NoError(t, err)
	assert.Equal(t, "Bridge South", updated.Name)
	assert.Equal(t, "Av. Central 100", updated.Address)
	assert.Equal(t, "projects/cover.png", updated.CoverImageURL)
	require.Len(t, updated.Inspections, 1)

	// Inspections patch replaces the array wholesale, never appends.
	replacement := []model.Inspection{
		{ID: "insp-2", InspectionObjective: "roof", Images: []model.Image{}},
	}
	updated, err = store.UpdateProject("proj-1", ProjectPatch{Inspections: &replacement})
	require.NoError(t, err)
	require.Len(t, updated.Inspections, 1)
	assert.Equal(t, "insp-2", updated.Inspections[0].ID)
	assert.Equal(t, "Bridge South", updated.Name, "earlier merge must survive")
}

func TestUpdateProject_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.UpdateProject("ghost", ProjectPatch{Name: strPtr("x")})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

// Two concurrent updates touching different fields must both land; the store
// serializes read-modify-write cycles.
func TestUpdateProject_ConcurrentWritersBothApply(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateProject(sampleProject("proj-1")))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := store.UpdateProject("proj-1", ProjectPatch{Name: strPtr("A")})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := store.UpdateProject("proj-1", ProjectPatch{Address: strPtr("B")})
		assert.NoError(t, err)
	}()
	wg.Wait()

	got, err := store.GetProject("proj-1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
	assert.Equal(t, "B", got.Address)
}

func TestDeleteProject(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateProject(sampleProject("proj-1")))
	require.NoError(t, store.DeleteProject("proj-1"))

	_, err := store.GetProject("proj-1")
	assert.True(t, errors.IsNotFound(err))

	err = store.DeleteProject("proj-1")
	assert.True(t, errors.IsNotFound(err))
}

func TestAddInspection_ObjectiveUniqueness(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateProject(sampleProject("proj-1")))

	insp := model.Inspection{ID: "insp-1", InspectionObjective: "facade cracks", Images: []model.Image{}}
	require.NoError(t, store.AddInspection("proj-1", insp))

	dup := model.Inspection{ID: "insp-2", InspectionObjective: "facade cracks", Images: []model.Image{}}
	err := store.AddInspection("proj-1", dup)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestAddImagesToInspection(t *testing.T) {
	store := newTestStore(t)
	p := sampleProject("proj-1")
	p.Inspections = []model.Inspection{{
		ID:     "insp-1",
		Images: []model.Image{{URL: "/files/a.jpeg"}, {URL: "/files/b.jpeg"}},
	}}
	require.NoError(t, store.CreateProject(p))

	images := []model.Image{
		{URL: "/files/c.jpeg", Detections: []model.Detection{{ClassName: "crack", Confidence: 0.92}}},
	}
	require.NoError(t, store.AddImagesToInspection("proj-1", "insp-1", images))

	got, err := store.GetProject("proj-1")
	require.NoError(t, err)
	require.Len(t, got.Inspections[0].Images, 3)
	assert.Equal(t, "crack", got.Inspections[0].Images[2].Detections[0].ClassName)

	err = store.AddImagesToInspection("proj-1", "missing", images)
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveImageFromInspection(t *testing.T) {
	store := newTestStore(t)
	p := sampleProject("proj-1")
	p.Inspections = []model.Inspection{{
		ID:     "insp-1",
		Images: []model.Image{{URL: "/files/a.jpeg"}, {URL: "/files/b.jpeg"}},
	}}
	require.NoError(t, store.CreateProject(p))

	require.NoError(t, store.RemoveImageFromInspection("proj-1", "insp-1", "/files/a.jpeg"))
	got, _ := store.GetProject("proj-1")
	require.Len(t, got.Inspections[0].Images, 1)
	assert.Equal(t, "/files/b.jpeg", got.Inspections[0].Images[0].URL)

	err := store.RemoveImageFromInspection("proj-1", "insp-1", "/files/a.jpeg")
	assert.True(t, errors.IsNotFound(err))
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	user := model.User{ID: "u1", Email: "a@b.c", Role: model.RoleAdmin}
	require.NoError(t, store.CreateUser(user))

	err := store.CreateUser(model.User{ID: "u2", Email: "a@b.c", Role: model.RoleUser})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	got, err := store.GetUserByEmail("a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	got.Name = "Ana"
	require.NoError(t, store.UpdateUser(*got))
	byID, err := store.GetUserByID("u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", byID.Name)

	_, err = store.GetUserByID("ghost")
	assert.True(t, errors.IsNotFound(err))
}

// The on-disk layout is part of the external contract: one document with
// top-level users[] and projects[], projects embedding inspections inline.
func TestPersistedLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	store := New(path)

	require.NoError(t, store.CreateUser(model.User{ID: "u1", Email: "a@b.c", Role: model.RoleUser}))
	p := sampleProject("proj-1")
	p.Inspections = []model.Inspection{{ID: "insp-1", Images: []model.Image{{URL: "/files/x.jpeg"}}}}
	require.NoError(t, store.CreateProject(p))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "users")
	assert.Contains(t, doc, "projects")

	// Reopen and confirm everything round-trips.
	reopened := New(path)
	got, err := reopened.GetProject("proj-1")
	require.NoError(t, err)
	assert.Equal(t, "/files/x.jpeg", got.Inspections[0].Images[0].URL)
}
