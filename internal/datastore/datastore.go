// Package datastore persists all users and projects in a single flat JSON
// document. Every operation is a whole-file read-modify-write; a store-level
// mutex serializes writers so concurrent updates cannot lose each other's
// changes, and writes land via temp-file-plus-rename so a crash never leaves
// a half-written store behind.
package datastore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/logging"
	"github.com/obralens/obralens/internal/model"
)

// Document is the full persisted store: one JSON object with top-level
// users[] and projects[].
type Document struct {
	Users    []model.User    `json:"users"`
	Projects []model.Project `json:"projects"`
}

// Interface is the store contract. Handlers and services depend on this so
// tests can substitute their own store.
type Interface interface {
	// Users
	GetUserByEmail(email string) (*model.User, error)
	GetUserByID(id string) (*model.User, error)
	CreateUser(user model.User) error
	UpdateUser(user model.User) error

	// Projects
	GetAllProjects() ([]model.Project, error)
	GetProjectsByUser(userID string) ([]model.Project, error)
	GetProject(id string) (*model.Project, error)
	CreateProject(project model.Project) error
	UpdateProject(id string, patch ProjectPatch) (*model.Project, error)
	DeleteProject(id string) error

	// Inspections
	AddInspection(projectID string, inspection model.Inspection) error
	RemoveInspection(projectID, inspectionID string) error
	AddImagesToInspection(projectID, inspectionID string, images []model.Image) error
	RemoveImageFromInspection(projectID, inspectionID, imageURL string) error
}

// fileStore implements Interface on top of a single JSON file.
type fileStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a store backed by the JSON document at path. The file is
// created lazily on first write.
func New(path string) Interface {
	return &fileStore{
		path:   path,
		logger: logging.ForService("datastore"),
	}
}

// read loads and parses the whole document. A missing file yields an empty
// document; any other failure is a datastore error.
func (s *fileStore) read() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{Users: []model.User{}, Projects: []model.Project{}}, nil
		}
		return nil, errors.Newf("reading store file: %w", err).
			Component("datastore").
			Category(errors.CategoryDatastore).
			Context("path", s.path).
			Build()
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Newf("parsing store file: %w", err).
			Component("datastore").
			Category(errors.CategoryDatastore).
			Context("path", s.path).
			Build()
	}
	return doc, nil
}

// write serializes the whole document and atomically replaces the store file.
func (s *fileStore) write(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Newf("serializing store: %w", err).
			Component("datastore").
			Category(errors.CategoryDatastore).
			Build()
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Newf("creating store directory: %w", err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	tmp, err := os.CreateTemp(dir, ".db-*.json")
	if err != nil {
		return errors.Newf("creating temp store file: %w", err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Build()
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Newf("writing temp store file: %w", err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Newf("closing temp store file: %w", err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Newf("replacing store file: %w", err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Build()
	}
	s.logger.Debug("store written", "bytes", len(data))
	return nil
}

// mutate runs fn against the current document under the writer lock and
// persists the result if fn succeeds.
func (s *fileStore) mutate(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func notFound(entity, id string) error {
	return errors.Newf("%s %q not found", entity, id).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Build()
}

// --- Users ---

func (s *fileStore) GetUserByEmail(email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Users {
		if doc.Users[i].Email == email {
			u := doc.Users[i]
			return &u, nil
		}
	}
	return nil, notFound("user", email)
}

func (s *fileStore) GetUserByID(id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Users {
		if doc.Users[i].ID == id {
			u := doc.Users[i]
			return &u, nil
		}
	}
	return nil, notFound("user", id)
}

func (s *fileStore) CreateUser(user model.User) error {
	return s.mutate(func(doc *Document) error {
		for i := range doc.Users {
			if doc.Users[i].Email == user.Email {
				return errors.Newf("user with email %q already exists", user.Email).
					Component("datastore").
					Category(errors.CategoryConflict).
					Build()
			}
		}
		doc.Users = append(doc.Users, user)
		return nil
	})
}

func (s *fileStore) UpdateUser(user model.User) error {
	return s.mutate(func(doc *Document) error {
		for i := range doc.Users {
			if doc.Users[i].ID == user.ID {
				doc.Users[i] = user
				return nil
			}
		}
		return notFound("user", user.ID)
	})
}

// --- Projects ---

func (s *fileStore) GetAllProjects() ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Projects, nil
}

func (s *fileStore) GetProjectsByUser(userID string) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	projects := []model.Project{}
	for i := range doc.Projects {
		if doc.Projects[i].UserID == userID {
			projects = append(projects, doc.Projects[i])
		}
	}
	return projects, nil
}

func (s *fileStore) GetProject(id string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Projects {
		if doc.Projects[i].ID == id {
			p := doc.Projects[i]
			return &p, nil
		}
	}
	return nil, notFound("project", id)
}

func (s *fileStore) CreateProject(project model.Project) error {
	return s.mutate(func(doc *Document) error {
		doc.Projects = append(doc.Projects, project)
		return nil
	})
}

func (s *fileStore) UpdateProject(id string, patch ProjectPatch) (*model.Project, error) {
	var updated model.Project
	err := s.mutate(func(doc *Document) error {
		for i := range doc.Projects {
			if doc.Projects[i].ID == id {
				patch.apply(&doc.Projects[i])
				updated = doc.Projects[i]
				return nil
			}
		}
		return notFound("project", id)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *fileStore) DeleteProject(id string) error {
	return s.mutate(func(doc *Document) error {
		for i := range doc.Projects {
			if doc.Projects[i].ID == id {
				doc.Projects = append(doc.Projects[:i], doc.Projects[i+1:]...)
				return nil
			}
		}
		return notFound("project", id)
	})
}

// --- Inspections ---

// AddInspection appends an inspection, enforcing objective uniqueness inside
// the store's critical section so concurrent creators cannot both pass the
// check.
func (s *fileStore) AddInspection(projectID string, inspection model.Inspection) error {
	return s.mutate(func(doc *Document) error {
		for i := range doc.Projects {
			if doc.Projects[i].ID != projectID {
				continue
			}
			if doc.Projects[i].HasInspectionObjective(inspection.InspectionObjective) {
				return errors.Newf("inspection with objective %q already exists", inspection.InspectionObjective).
					Component("datastore").
					Category(errors.CategoryConflict).
					Build()
			}
			doc.Projects[i].Inspections = append(doc.Projects[i].Inspections, inspection)
			return nil
		}
		return notFound("project", projectID)
	})
}

func (s *fileStore) RemoveInspection(projectID, inspectionID string) error {
	return s.mutate(func(doc *Document) error {
		for i := range doc.Projects {
			if doc.Projects[i].ID != projectID {
				continue
			}
			inspections := doc.Projects[i].Inspections
			for j := range inspections {
				if inspections[j].ID == inspectionID {
					doc.Projects[i].Inspections = append(inspections[:j], inspections[j+1:]...)
					return nil
				}
			}
			return notFound("inspection", inspectionID)
		}
		return notFound("project", projectID)
	})
}

func (s *fileStore) AddImagesToInspection(projectID, inspectionID string, images []model.Image) error {
	return s.mutate(func(doc *Document) error {
		for i := range doc.Projects {
			if doc.Projects[i].ID != projectID {
				continue
			}
			inspection := doc.Projects[i].FindInspection(inspectionID)
			if inspection == nil {
				return notFound("inspection", inspectionID)
			}
			inspection.Images = append(inspection.Images, images...)
			return nil
		}
		return notFound("project", projectID)
	})
}

func (s *fileStore) RemoveImageFromInspection(projectID, inspectionID, imageURL string) error {
	return s.mutate(func(doc *Document) error {
		for i := range doc.Projects {
			if doc.Projects[i].ID != projectID {
				continue
			}
			inspection := doc.Projects[i].FindInspection(inspectionID)
			if inspection == nil {
				return notFound("inspection", inspectionID)
			}
			images := inspection.Images
			for j := range images {
				if images[j].URL == imageURL {
					inspection.Images = append(images[:j], images[j+1:]...)
					return nil
				}
			}
			return notFound("image", imageURL)
		}
		return notFound("project", projectID)
	})
}

var _ Interface = (*fileStore)(nil)

// String implements fmt.Stringer for debug logging.
func (s *fileStore) String() string {
	return fmt.Sprintf("fileStore(%s)", s.path)
}
