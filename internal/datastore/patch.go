package datastore

import "github.com/obralens/obralens/internal/model"

// ProjectPatch is a partial project update. Nil fields are left unchanged.
//
// Merge contract: scalar fields and Modules shallow-merge over the stored
// record. OAE and Inspections are replaced WHOLESALE when set; the store never
// deep-merges or appends to them. Callers that want to append must read,
// modify and write the full slice (or use the dedicated inspection
// operations). UserID is deliberately absent: ownership is not
// client-writable.
type ProjectPatch struct {
	Name          *string
	Address       *string
	Type          *string
	Responsible   *string
	CoverImageURL *string
	BIMModelURL   *string
	Modules       *model.Modules
	OAE           *[]model.OAE

	BuildingYear    *string
	BuiltArea       *string
	FacadeTypology  *string
	RoofTypology    *string
	BuildingAcronym *string
	UnitDirector    *string

	Inspections *[]model.Inspection
}

func (p *ProjectPatch) apply(project *model.Project) {
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.Address != nil {
		project.Address = *p.Address
	}
	if p.Type != nil {
		project.Type = *p.Type
	}
	if p.Responsible != nil {
		project.Responsible = *p.Responsible
	}
	if p.CoverImageURL != nil {
		project.CoverImageURL = *p.CoverImageURL
	}
	if p.BIMModelURL != nil {
		project.BIMModelURL = *p.BIMModelURL
	}
	if p.Modules != nil {
		project.Modules = *p.Modules
	}
	if p.OAE != nil {
		project.OAE = *p.OAE
	}
	if p.BuildingYear != nil {
		project.BuildingYear = *p.BuildingYear
	}
	if p.BuiltArea != nil {
		project.BuiltArea = *p.BuiltArea
	}
	if p.FacadeTypology != nil {
		project.FacadeTypology = *p.FacadeTypology
	}
	if p.RoofTypology != nil {
		project.RoofTypology = *p.RoofTypology
	}
	if p.BuildingAcronym != nil {
		project.BuildingAcronym = *p.BuildingAcronym
	}
	if p.UnitDirector != nil {
		project.UnitDirector = *p.UnitDirector
	}
	if p.Inspections != nil {
		project.Inspections = *p.Inspections
	}
}
