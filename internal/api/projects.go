package api

import (
	"encoding/json"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/auth"
	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/model"
	"github.com/obralens/obralens/internal/project"
)

// ListProjects returns the projects visible to the caller.
func (c *Controller) ListProjects(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	projects, err := c.Projects.List(user)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to list projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

// GetProject returns one project. Reads are served from a short-lived cache;
// the ownership check still runs on every request.
func (c *Controller) GetProject(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	id := ctx.Param("id")

	if cached, found := c.projectCache.Get(id); found {
		p := cached.(*model.Project)
		if user.Role == model.RoleAdmin || p.UserID == user.ID {
			return ctx.JSON(http.StatusOK, p)
		}
	}

	p, err := c.Projects.Get(user, id)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to get project")
	}
	c.projectCache.SetDefault(id, p)
	return ctx.JSON(http.StatusOK, p)
}

// CreateProject creates a project from a multipart form: text fields plus the
// required coverImage and bimModel files, optional paired oaeNames/oaeModels
// and a modules JSON field.
func (c *Controller) CreateProject(ctx echo.Context) error {
	user := auth.UserFrom(ctx)

	in := project.CreateInput{
		UserID:      user.ID,
		Name:        ctx.FormValue("name"),
		Address:     ctx.FormValue("address"),
		Type:        ctx.FormValue("type"),
		Responsible: ctx.FormValue("responsible"),

		BuildingYear:    ctx.FormValue("buildingYear"),
		BuiltArea:       ctx.FormValue("builtArea"),
		FacadeTypology:  ctx.FormValue("facadeTypology"),
		RoofTypology:    ctx.FormValue("roofTypology"),
		BuildingAcronym: ctx.FormValue("buildingAcronym"),
		UnitDirector:    ctx.FormValue("unitDirector"),
	}

	if raw := ctx.FormValue("modules"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Modules); err != nil {
			return c.HandleError(ctx, err, "Invalid modules field", http.StatusBadRequest)
		}
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, err, "Invalid multipart form", http.StatusBadRequest)
	}

	var closers []multipart.File
	defer func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}()
	openUpload := func(fh *multipart.FileHeader) (*project.FileUpload, error) {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		closers = append(closers, f)
		return &project.FileUpload{FileName: fh.Filename, Reader: f}, nil
	}

	if headers := form.File["coverImage"]; len(headers) > 0 {
		if in.Cover, err = openUpload(headers[0]); err != nil {
			return c.HandleError(ctx, err, "Failed to read cover image", http.StatusBadRequest)
		}
	}
	if headers := form.File["bimModel"]; len(headers) > 0 {
		if in.BIMModel, err = openUpload(headers[0]); err != nil {
			return c.HandleError(ctx, err, "Failed to read BIM model", http.StatusBadRequest)
		}
	}

	in.OAENames = form.Value["oaeNames"]
	for _, fh := range form.File["oaeModels"] {
		upload, err := openUpload(fh)
		if err != nil {
			return c.HandleError(ctx, err, "Failed to read OAE model", http.StatusBadRequest)
		}
		in.OAEModels = append(in.OAEModels, upload)
	}

	created, err := c.Projects.Create(in)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to create project")
	}
	c.invalidateProjectCache()
	return ctx.JSON(http.StatusCreated, created)
}

// UpdateProjectRequest is the JSON merge-patch body for project updates.
// Absent fields stay unchanged; oae and inspections replace wholesale.
type UpdateProjectRequest struct {
	Name          *string             `json:"name"`
	Address       *string             `json:"address"`
	Type          *string             `json:"type"`
	Responsible   *string             `json:"responsible"`
	CoverImageURL *string             `json:"coverImageUrl"`
	BIMModelURL   *string             `json:"bimModelUrl"`
	Modules       *model.Modules      `json:"modules"`
	OAE           *[]model.OAE        `json:"oae"`
	Inspections   *[]model.Inspection `json:"inspections"`

	BuildingYear    *string `json:"buildingYear"`
	BuiltArea       *string `json:"builtArea"`
	FacadeTypology  *string `json:"facadeTypology"`
	RoofTypology    *string `json:"roofTypology"`
	BuildingAcronym *string `json:"buildingAcronym"`
	UnitDirector    *string `json:"unitDirector"`
}

// UpdateProject applies a merge-patch to a project the caller may edit.
func (c *Controller) UpdateProject(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	req := &UpdateProjectRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	patch := datastore.ProjectPatch{
		Name:            req.Name,
		Address:         req.Address,
		Type:            req.Type,
		Responsible:     req.Responsible,
		CoverImageURL:   req.CoverImageURL,
		BIMModelURL:     req.BIMModelURL,
		Modules:         req.Modules,
		OAE:             req.OAE,
		Inspections:     req.Inspections,
		BuildingYear:    req.BuildingYear,
		BuiltArea:       req.BuiltArea,
		FacadeTypology:  req.FacadeTypology,
		RoofTypology:    req.RoofTypology,
		BuildingAcronym: req.BuildingAcronym,
		UnitDirector:    req.UnitDirector,
	}

	updated, err := c.Projects.Update(user, ctx.Param("id"), patch)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to update project")
	}
	c.invalidateProjectCache()
	return ctx.JSON(http.StatusOK, updated)
}

// DeleteProject removes a project and its stored assets. Admin only.
func (c *Controller) DeleteProject(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	if err := c.Projects.Delete(user, ctx.Param("id")); err != nil {
		return c.ServiceError(ctx, err, "Failed to delete project")
	}
	c.invalidateProjectCache()
	return ctx.NoContent(http.StatusNoContent)
}
