// Package project implements project and inspection management on top of the
// flat-file store: asset persistence for uploaded files, module-dependent
// field handling, and the cleanup work that has to happen alongside record
// changes.
package project

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/logging"
	"github.com/obralens/obralens/internal/model"
)

// safeFileNamePattern accepts the names our own asset writer produces plus
// plain client filenames. Anything with a path separator is rejected.
var safeFileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// FileUpload is one uploaded file handed to the service. The caller owns the
// reader and closes it after the call returns.
type FileUpload struct {
	FileName string
	Reader   io.Reader
}

// CreateInput carries everything needed to create a project.
type CreateInput struct {
	UserID      string
	Name        string
	Address     string
	Type        string
	Responsible string
	Modules     model.Modules

	Cover    *FileUpload // required
	BIMModel *FileUpload // required

	// OAE records are built positionally: OAENames[i] pairs with OAEModels[i].
	OAENames  []string
	OAEModels []*FileUpload

	// Maintenance-module fields, ignored unless Modules.Maintenance is set.
	BuildingYear    string
	BuiltArea       string
	FacadeTypology  string
	RoofTypology    string
	BuildingAcronym string
	UnitDirector    string
}

// InspectionInput carries the fields of a new inspection.
type InspectionInput struct {
	InspectionType        string
	InspectionObjective   string
	InspectionDate        string
	InspectionResponsible string
}

// Service manages projects, inspections and their on-disk assets.
type Service struct {
	store      datastore.Interface
	uploadsDir string
	logger     *slog.Logger
}

// NewService creates a project service writing assets under uploadsDir.
func NewService(store datastore.Interface, uploadsDir string) *Service {
	return &Service{
		store:      store,
		uploadsDir: uploadsDir,
		logger:     logging.ForService("project"),
	}
}

// List returns the projects visible to the given user: everything for admins,
// owned projects for everyone else.
func (s *Service) List(user *model.User) ([]model.Project, error) {
	if user.Role == model.RoleAdmin {
		return s.store.GetAllProjects()
	}
	return s.store.GetProjectsByUser(user.ID)
}

// Get returns a single project after checking the user may see it.
func (s *Service) Get(user *model.User, projectID string) (*model.Project, error) {
	project, err := s.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleAdmin && project.UserID != user.ID {
		return nil, errors.Newf("project %q does not belong to user", projectID).
			Component("project").
			Category(errors.CategoryForbidden).
			Build()
	}
	return project, nil
}

// Create validates the input, persists the uploaded assets and stores the new
// project record. Maintenance fields are only kept when the maintenance
// module is enabled; OAE models pair positionally with their names.
func (s *Service) Create(in CreateInput) (*model.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, validationError("project name is required")
	}
	if in.Cover == nil {
		return nil, validationError("cover image is required")
	}
	if in.BIMModel == nil {
		return nil, validationError("BIM model file is required")
	}
	if len(in.OAENames) != len(in.OAEModels) {
		return nil, validationError(
			fmt.Sprintf("OAE names and model files must match: got %d names, %d files",
				len(in.OAENames), len(in.OAEModels)))
	}

	coverURL, err := s.SaveAsset("projects", in.Cover)
	if err != nil {
		return nil, err
	}
	bimURL, err := s.SaveAsset("projects", in.BIMModel)
	if err != nil {
		return nil, err
	}

	oae := make([]model.OAE, 0, len(in.OAENames))
	for i, name := range in.OAENames {
		modelURL, err := s.SaveAsset("projects", in.OAEModels[i])
		if err != nil {
			return nil, err
		}
		oae = append(oae, model.OAE{
			ID:          uuid.NewString(),
			Name:        name,
			BIMModelURL: modelURL,
		})
	}

	project := model.Project{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Name:          in.Name,
		Address:       in.Address,
		Type:          in.Type,
		Responsible:   in.Responsible,
		CoverImageURL: coverURL,
		BIMModelURL:   bimURL,
		Modules:       in.Modules,
		OAE:           oae,
		Inspections:   []model.Inspection{},
	}
	if in.Modules.Maintenance {
		project.BuildingYear = in.BuildingYear
		project.BuiltArea = in.BuiltArea
		project.FacadeTypology = in.FacadeTypology
		project.RoofTypology = in.RoofTypology
		project.BuildingAcronym = in.BuildingAcronym
		project.UnitDirector = in.UnitDirector
	}

	if err := s.store.CreateProject(project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", project.ID, "user_id", project.UserID)
	return &project, nil
}

// Update applies a merge-patch to the project. Ownership never changes here.
func (s *Service) Update(user *model.User, projectID string, patch datastore.ProjectPatch) (*model.Project, error) {
	if _, err := s.Get(user, projectID); err != nil {
		return nil, err
	}
	return s.store.UpdateProject(projectID, patch)
}

// Delete removes a project record and best-effort unlinks its assets. Only
// admins may delete projects. Asset removal failures are logged and never
// block the record deletion.
func (s *Service) Delete(user *model.User, projectID string) error {
	if user.Role != model.RoleAdmin {
		return errors.Newf("only administrators may delete projects").
			Component("project").
			Category(errors.CategoryForbidden).
			Build()
	}

	project, err := s.store.GetProject(projectID)
	if err != nil {
		return err
	}

	s.removeAsset(project.CoverImageURL)
	s.removeAsset(project.BIMModelURL)
	for i := range project.OAE {
		s.removeAsset(project.OAE[i].BIMModelURL)
	}
	imagesDir := filepath.Join(s.uploadsDir, "processed_images", projectID)
	if err := os.RemoveAll(imagesDir); err != nil {
		s.logger.Warn("failed to remove project images directory", "path", imagesDir, "error", err)
	}

	if err := s.store.DeleteProject(projectID); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", projectID, "by", user.ID)
	return nil
}

// CreateInspection validates and stores a new inspection, then creates its
// upload directory. Objective uniqueness is enforced by the store.
func (s *Service) CreateInspection(user *model.User, projectID string, in InspectionInput) (*model.Inspection, error) {
	if _, err := s.Get(user, projectID); err != nil {
		return nil, err
	}
	for _, field := range []struct{ name, value string }{
		{"inspectionType", in.InspectionType},
		{"inspectionObjective", in.InspectionObjective},
		{"inspectionDate", in.InspectionDate},
		{"inspectionResponsible", in.InspectionResponsible},
	} {
		if strings.TrimSpace(field.value) == "" {
			return nil, validationError(field.name + " is required")
		}
	}

	inspection := model.Inspection{
		ID:                    uuid.NewString(),
		InspectionType:        in.InspectionType,
		InspectionObjective:   in.InspectionObjective,
		InspectionDate:        in.InspectionDate,
		InspectionResponsible: in.InspectionResponsible,
		Images:                []model.Image{},
	}
	if err := s.store.AddInspection(projectID, inspection); err != nil {
		return nil, err
	}

	dir := s.inspectionDir(projectID, inspection.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("failed to create inspection upload directory", "path", dir, "error", err)
	}

	s.logger.Info("inspection created",
		"project_id", projectID,
		"inspection_id", inspection.ID,
		"objective", inspection.InspectionObjective)
	return &inspection, nil
}

// DeleteInspection removes the inspection's image directory and then its
// record. A missing directory is fine; the record is removed regardless.
func (s *Service) DeleteInspection(user *model.User, projectID, inspectionID string) error {
	if _, err := s.Get(user, projectID); err != nil {
		return err
	}

	dir := s.inspectionDir(projectID, inspectionID)
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("failed to remove inspection directory", "path", dir, "error", err)
	}
	return s.store.RemoveInspection(projectID, inspectionID)
}

// DeleteImage unlinks one committed image and drops its record from the
// inspection. A file already gone on disk is tolerated.
func (s *Service) DeleteImage(user *model.User, projectID, inspectionID, imageName string) error {
	if _, err := s.Get(user, projectID); err != nil {
		return err
	}
	if !safeFileNamePattern.MatchString(imageName) {
		return validationError("invalid image file name")
	}

	path := filepath.Join(s.inspectionDir(projectID, inspectionID), imageName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Newf("removing image file: %w", err).
			Component("project").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	imageURL := fmt.Sprintf("/files/processed_images/%s/%s/%s", projectID, inspectionID, imageName)
	return s.store.RemoveImageFromInspection(projectID, inspectionID, imageURL)
}

// SaveAsset writes an uploaded file under <uploads>/<subdir>/ with a fresh
// name that keeps the original extension, and returns its public URL.
func (s *Service) SaveAsset(subdir string, upload *FileUpload) (string, error) {
	dir := filepath.Join(s.uploadsDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Newf("creating asset directory: %w", err).
			Component("project").
			Category(errors.CategoryFileIO).
			Build()
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(upload.FileName))
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Newf("creating asset file: %w", err).
			Component("project").
			Category(errors.CategoryFileIO).
			Build()
	}
	if _, err := io.Copy(out, upload.Reader); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", errors.Newf("writing asset file: %w", err).
			Component("project").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := out.Close(); err != nil {
		return "", errors.Newf("closing asset file: %w", err).
			Component("project").
			Category(errors.CategoryFileIO).
			Build()
	}
	return "/files/" + subdir + "/" + name, nil
}

// RemoveAsset deletes a previously saved asset by its public URL. Used when
// an upload replaces an existing file.
func (s *Service) RemoveAsset(url string) {
	s.removeAsset(url)
}

// removeAsset resolves a /files URL back into the uploads directory and
// unlinks it. Failures are logged only.
func (s *Service) removeAsset(url string) {
	rel, ok := strings.CutPrefix(url, "/files/")
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return
	}
	path := filepath.Join(s.uploadsDir, filepath.FromSlash(rel))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove asset", "path", path, "error", err)
	}
}

func (s *Service) inspectionDir(projectID, inspectionID string) string {
	return filepath.Join(s.uploadsDir, "processed_images", projectID, inspectionID)
}

func validationError(msg string) error {
	return errors.Newf("%s", msg).
		Component("project").
		Category(errors.CategoryValidation).
		Build()
}
