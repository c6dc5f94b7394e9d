package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/model"
)

var (
	adminUser = &model.User{ID: "admin-1", Email: "admin@example.com", Role: model.RoleAdmin}
	plainUser = &model.User{ID: "user-1", Email: "user@example.com", Role: model.RoleUser}
	otherUser = &model.User{ID: "user-2", Email: "other@example.com", Role: model.RoleUser}
)

func newService(t *testing.T) (*Service, datastore.Interface, string) {
	t.Helper()
	uploads := filepath.Join(t.TempDir(), "uploads")
	store := datastore.New(filepath.Join(t.TempDir(), "db.json"))
	return NewService(store, uploads), store, uploads
}

func upload(name, content string) *FileUpload {
	return &FileUpload{FileName: name, Reader: strings.NewReader(content)}
}

func createInput(userID string) CreateInput {
	return CreateInput{
		UserID:      userID,
		Name:        "Warehouse B",
		Address:     "Dock Road 7",
		Type:        "industrial",
		Responsible: "R. Vega",
		Modules:     model.Modules{Progress: true},
		Cover:       upload("cover.png", "png-bytes"),
		BIMModel:    upload("model.ifc", "ifc-bytes"),
	}
}

func TestCreate(t *testing.T) {
	svc, store, uploads := newService(t)

	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, plainUser.ID, project.UserID)
	assert.True(t, strings.HasPrefix(project.CoverImageURL, "/files/projects/"))
	assert.True(t, strings.HasSuffix(project.CoverImageURL, ".png"))
	assert.True(t, strings.HasSuffix(project.BIMModelURL, ".ifc"))

	// Assets exist on disk where the URL points.
	coverPath := filepath.Join(uploads, strings.TrimPrefix(project.CoverImageURL, "/files/"))
	content, err := os.ReadFile(coverPath)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(content))

	stored, err := store.GetProject(project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Name, stored.Name)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newService(t)

	missingCover := createInput(plainUser.ID)
	missingCover.Cover = nil
	_, err := svc.Create(missingCover)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	missingModel := createInput(plainUser.ID)
	missingModel.BIMModel = nil
	_, err = svc.Create(missingModel)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	unnamed := createInput(plainUser.ID)
	unnamed.Name = "  "
	_, err = svc.Create(unnamed)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCreate_OAEPairing(t *testing.T) {
	svc, _, _ := newService(t)

	in := createInput(plainUser.ID)
	in.OAENames = []string{"pump house", "silo"}
	in.OAEModels = []*FileUpload{upload("pump.ifc", "a"), upload("silo.ifc", "b")}

	project, err := svc.Create(in)
	require.NoError(t, err)
	require.Len(t, project.OAE, 2)
	assert.Equal(t, "pump house", project.OAE[0].Name)
	assert.Equal(t, "silo", project.OAE[1].Name)
	assert.NotEmpty(t, project.OAE[0].BIMModelURL)

	// Count mismatch is rejected before anything is written.
	in = createInput(plainUser.ID)
	in.OAENames = []string{"pump house", "silo"}
	in.OAEModels = []*FileUpload{upload("pump.ifc", "a")}
	_, err = svc.Create(in)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCreate_MaintenanceFieldsGatedByModule(t *testing.T) {
	svc, _, _ := newService(t)

	in := createInput(plainUser.ID)
	in.BuildingYear = "1987"
	in.UnitDirector = "J. Prat"

	project, err := svc.Create(in)
	require.NoError(t, err)
	assert.Empty(t, project.BuildingYear, "maintenance fields must be dropped when the module is off")
	assert.Empty(t, project.UnitDirector)

	in = createInput(plainUser.ID)
	in.Modules.Maintenance = true
	in.BuildingYear = "1987"
	in.UnitDirector = "J. Prat"

	project, err = svc.Create(in)
	require.NoError(t, err)
	assert.Equal(t, "1987", project.BuildingYear)
	assert.Equal(t, "J. Prat", project.UnitDirector)
}

func TestGet_Ownership(t *testing.T) {
	svc, _, _ := newService(t)
	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)

	got, err := svc.Get(plainUser, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)

	got, err = svc.Get(adminUser, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)

	_, err = svc.Get(otherUser, project.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryForbidden))
}

func TestList(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)
	_, err = svc.Create(createInput(otherUser.ID))
	require.NoError(t, err)

	mine, err := svc.List(plainUser)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := svc.List(adminUser)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdate(t *testing.T) {
	svc, _, _ := newService(t)
	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)

	name := "Warehouse B (extended)"
	updated, err := svc.Update(plainUser, project.ID, datastore.ProjectPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, project.Address, updated.Address, "unpatched fields stay")

	_, err = svc.Update(otherUser, project.ID, datastore.ProjectPatch{Name: &name})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryForbidden))
}

func TestDelete(t *testing.T) {
	svc, store, uploads := newService(t)
	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)
	coverPath := filepath.Join(uploads, strings.TrimPrefix(project.CoverImageURL, "/files/"))

	// Non-admins cannot delete, not even the owner.
	err = svc.Delete(plainUser, project.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryForbidden))

	require.NoError(t, svc.Delete(adminUser, project.ID))

	_, err = store.GetProject(project.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = os.Stat(coverPath)
	assert.True(t, os.IsNotExist(err), "cover asset must be unlinked")
}

func TestCreateInspection(t *testing.T) {
	svc, store, uploads := newService(t)
	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)

	in := InspectionInput{
		InspectionType:        "structural",
		InspectionObjective:   "facade pass",
		InspectionDate:        "2026-08-28",
		InspectionResponsible: "R. Vega",
	}
	inspection, err := svc.CreateInspection(plainUser, project.ID, in)
	require.NoError(t, err)
	assert.NotEmpty(t, inspection.ID)

	// Upload directory is created alongside the record.
	dir := filepath.Join(uploads, "processed_images", project.ID, inspection.ID)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	stored, err := store.GetProject(project.ID)
	require.NoError(t, err)
	require.Len(t, stored.Inspections, 1)

	// Duplicate objective within the project is a conflict.
	_, err = svc.CreateInspection(plainUser, project.ID, in)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	// Missing fields are rejected.
	_, err = svc.CreateInspection(plainUser, project.ID, InspectionInput{InspectionType: "structural"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestDeleteInspection(t *testing.T) {
	svc, store, uploads := newService(t)
	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)

	inspection, err := svc.CreateInspection(plainUser, project.ID, InspectionInput{
		InspectionType:        "structural",
		InspectionObjective:   "facade pass",
		InspectionDate:        "2026-08-28",
		InspectionResponsible: "R. Vega",
	})
	require.NoError(t, err)

	dir := filepath.Join(uploads, "processed_images", project.ID, inspection.ID)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img.jpeg"), []byte("x"), 0o644))

	require.NoError(t, svc.DeleteInspection(plainUser, project.ID, inspection.ID))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	stored, err := store.GetProject(project.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Inspections)
}

func TestDeleteInspection_MissingDirectoryTolerated(t *testing.T) {
	svc, store, uploads := newService(t)
	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)

	inspection, err := svc.CreateInspection(plainUser, project.ID, InspectionInput{
		InspectionType:        "structural",
		InspectionObjective:   "roof pass",
		InspectionDate:        "2026-08-28",
		InspectionResponsible: "R. Vega",
	})
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(uploads, "processed_images", project.ID, inspection.ID)))

	require.NoError(t, svc.DeleteInspection(plainUser, project.ID, inspection.ID))
	stored, err := store.GetProject(project.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Inspections)
}

func TestDeleteImage(t *testing.T) {
	svc, store, uploads := newService(t)
	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)
	inspection, err := svc.CreateInspection(plainUser, project.ID, InspectionInput{
		InspectionType:        "structural",
		InspectionObjective:   "facade pass",
		InspectionDate:        "2026-08-28",
		InspectionResponsible: "R. Vega",
	})
	require.NoError(t, err)

	imagePath := filepath.Join(uploads, "processed_images", project.ID, inspection.ID, "img-1.jpeg")
	require.NoError(t, os.WriteFile(imagePath, []byte("x"), 0o644))
	imageURL := "/files/processed_images/" + project.ID + "/" + inspection.ID + "/img-1.jpeg"
	require.NoError(t, store.AddImagesToInspection(project.ID, inspection.ID, []model.Image{{URL: imageURL}}))

	require.NoError(t, svc.DeleteImage(plainUser, project.ID, inspection.ID, "img-1.jpeg"))

	_, err = os.Stat(imagePath)
	assert.True(t, os.IsNotExist(err))
	stored, err := store.GetProject(project.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Inspections[0].Images)

	// Path traversal in the file name is rejected outright.
	err = svc.DeleteImage(plainUser, project.ID, inspection.ID, "../../db.json")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestDeleteImage_MissingFileTolerated(t *testing.T) {
	svc, store, _ := newService(t)
	project, err := svc.Create(createInput(plainUser.ID))
	require.NoError(t, err)
	inspection, err := svc.CreateInspection(plainUser, project.ID, InspectionInput{
		InspectionType:        "structural",
		InspectionObjective:   "facade pass",
		InspectionDate:        "2026-08-28",
		InspectionResponsible: "R. Vega",
	})
	require.NoError(t, err)

	imageURL := "/files/processed_images/" + project.ID + "/" + inspection.ID + "/gone.jpeg"
	require.NoError(t, store.AddImagesToInspection(project.ID, inspection.ID, []model.Image{{URL: imageURL}}))

	require.NoError(t, svc.DeleteImage(plainUser, project.ID, inspection.ID, "gone.jpeg"))
	stored, err := store.GetProject(project.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Inspections[0].Images)
}
