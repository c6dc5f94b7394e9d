// Package model defines the persisted entities of the flat-file store.
// Field names on the wire are fixed: project records use camelCase keys and
// detections use the snake_case keys emitted by the detection service.
package model

// Box is an axis-aligned bounding box in source-image pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection is one bounding-box classification produced by the detection
// service. Immutable once produced; the review pipeline never recomputes it.
type Detection struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"` // in [0,1]
	Box        Box     `json:"box"`
}

// Image is a stored image reference, owned exclusively by its inspection.
type Image struct {
	URL        string      `json:"url"` // storage-relative, served under /files
	Detections []Detection `json:"detections,omitempty"`
}

// Inspection is a named, dated grouping of images within a project,
// representing one site visit or review pass.
type Inspection struct {
	ID                    string  `json:"id"`
	InspectionType        string  `json:"inspectionType"`
	InspectionObjective   string  `json:"inspectionObjective"` // unique within a project
	InspectionDate        string  `json:"inspectionDate"`
	InspectionResponsible string  `json:"inspectionResponsible"`
	Images                []Image `json:"images"`
}

// Modules holds the per-project feature flags.
type Modules struct {
	Progress    bool `json:"progress"`
	Security    bool `json:"security"`
	Maintenance bool `json:"maintenance"`
}

// OAE is an auxiliary structure record with its own BIM model.
type OAE struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BIMModelURL string `json:"bimModelUrl"`
}

// Project is the root aggregate. CoverImageURL and BIMModelURL are required
// at creation and never null afterwards.
type Project struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	Type          string  `json:"type"`
	Responsible   string  `json:"responsible"`
	CoverImageURL string  `json:"coverImageUrl"`
	BIMModelURL   string  `json:"bimModelUrl"`
	Modules       Modules `json:"modules"`
	OAE           []OAE   `json:"oae,omitempty"`

	// Maintenance-module fields, persisted only when the module is enabled.
	BuildingYear    string `json:"buildingYear,omitempty"`
	BuiltArea       string `json:"builtArea,omitempty"`
	FacadeTypology  string `json:"facadeTypology,omitempty"`
	RoofTypology    string `json:"roofTypology,omitempty"`
	BuildingAcronym string `json:"buildingAcronym,omitempty"`
	UnitDirector    string `json:"unitDirector,omitempty"`

	Inspections []Inspection `json:"inspections,omitempty"`
}

// FindInspection returns the inspection with the given id, or nil.
func (p *Project) FindInspection(inspectionID string) *Inspection {
	for i := range p.Inspections {
		if p.Inspections[i].ID == inspectionID {
			return &p.Inspections[i]
		}
	}
	return nil
}

// HasInspectionObjective reports whether any inspection already carries the
// given objective.
func (p *Project) HasInspectionObjective(objective string) bool {
	for i := range p.Inspections {
		if p.Inspections[i].InspectionObjective == objective {
			return true
		}
	}
	return false
}
