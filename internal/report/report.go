// Package report generates inspection PDF reports. The report HTML is
// assembled from the stored inspection data with images embedded inline, then
// rendered to PDF by a headless Chrome instance.
package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/logging"
	"github.com/obralens/obralens/internal/model"
)

// Generator builds inspection reports from the store and the uploads
// directory.
type Generator struct {
	store         datastore.Interface
	uploadsDir    string
	renderTimeout time.Duration
	logger        *slog.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(store datastore.Interface, uploadsDir string, renderTimeout time.Duration) *Generator {
	return &Generator{
		store:         store,
		uploadsDir:    uploadsDir,
		renderTimeout: renderTimeout,
		logger:        logging.ForService("report"),
	}
}

// reportData is the template input assembled from one inspection.
type reportData struct {
	ProjectName     string
	ProjectAddress  string
	Objective       string
	Type            string
	Date            string
	Responsible     string
	GeneratedAt     string
	TotalImages     int
	TotalDetections int
	ClassCounts     []classCount
	Images          []reportImage
}

type classCount struct {
	ClassName string
	Count     int
}

type reportImage struct {
	Index      int
	DataURI    template.URL
	Missing    bool
	Detections []reportDetection
}

type reportDetection struct {
	ClassName  string
	Confidence string // formatted percentage
	Box        string // formatted coordinates
}

// BuildHTML assembles the report markup for an inspection. Image files that
// have gone missing on disk are flagged in the report instead of failing it.
func (g *Generator) BuildHTML(projectID, inspectionID string) (string, error) {
	project, err := g.store.GetProject(projectID)
	if err != nil {
		return "", err
	}
	inspection := project.FindInspection(inspectionID)
	if inspection == nil {
		return "", errors.Newf("inspection %q not found in project %q", inspectionID, projectID).
			Component("report").
			Category(errors.CategoryNotFound).
			Build()
	}

	data := g.assemble(project, inspection)

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", errors.Newf("rendering report template: %w", err).
			Component("report").
			Category(errors.CategoryReport).
			Build()
	}
	return buf.String(), nil
}

func (g *Generator) assemble(project *model.Project, inspection *model.Inspection) *reportData {
	data := &reportData{
		ProjectName:    project.Name,
		ProjectAddress: project.Address,
		Objective:      inspection.InspectionObjective,
		Type:           inspection.InspectionType,
		Date:           inspection.InspectionDate,
		Responsible:    inspection.InspectionResponsible,
		GeneratedAt:    time.Now().Format("2006-01-02 15:04"),
		TotalImages:    len(inspection.Images),
	}

	counts := map[string]int{}
	for i := range inspection.Images {
		img := &inspection.Images[i]
		ri := reportImage{Index: i + 1}

		uri, err := g.imageDataURI(img.URL)
		if err != nil {
			g.logger.Warn("report image unavailable", "url", img.URL, "error", err)
			ri.Missing = true
		} else {
			ri.DataURI = uri
		}

		for _, d := range img.Detections {
			counts[d.ClassName]++
			data.TotalDetections++
			ri.Detections = append(ri.Detections, reportDetection{
				ClassName:  d.ClassName,
				Confidence: fmt.Sprintf("%.1f%%", d.Confidence*100),
				Box: fmt.Sprintf("(%.0f, %.0f) – (%.0f, %.0f)",
					d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2),
			})
		}
		data.Images = append(data.Images, ri)
	}

	for name, count := range counts {
		data.ClassCounts = append(data.ClassCounts, classCount{ClassName: name, Count: count})
	}
	sort.Slice(data.ClassCounts, func(i, j int) bool {
		if data.ClassCounts[i].Count != data.ClassCounts[j].Count {
			return data.ClassCounts[i].Count > data.ClassCounts[j].Count
		}
		return data.ClassCounts[i].ClassName < data.ClassCounts[j].ClassName
	})
	return data
}

// imageDataURI reads a stored image by its /files URL and embeds it as a
// base64 data URI so the rendered page needs no server.
func (g *Generator) imageDataURI(url string) (template.URL, error) {
	rel, ok := strings.CutPrefix(url, "/files/")
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return "", fmt.Errorf("unexpected image url %q", url)
	}
	raw, err := os.ReadFile(filepath.Join(g.uploadsDir, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	return template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)), nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Inspection Report - {{.ProjectName}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #222; font-size: 12px; }
  h1 { font-size: 20px; border-bottom: 2px solid #1a5276; padding-bottom: 6px; }
  h2 { font-size: 15px; color: #1a5276; margin-top: 24px; }
  table { border-collapse: collapse; width: 100%; margin-top: 8px; }
  th, td { border: 1px solid #bbb; padding: 4px 8px; text-align: left; }
  th { background: #eaf0f6; }
  .meta td:first-child { font-weight: bold; width: 180px; }
  .image-block { page-break-inside: avoid; margin-top: 20px; }
  .image-block img { max-width: 100%; max-height: 480px; }
  .missing { color: #922; font-style: italic; }
</style>
</head>
<body>
<h1>Inspection Report - {{.ProjectName}}</h1>

<table class="meta">
  <tr><td>Address</td><td>{{.ProjectAddress}}</td></tr>
  <tr><td>Inspection objective</td><td>{{.Objective}}</td></tr>
  <tr><td>Inspection type</td><td>{{.Type}}</td></tr>
  <tr><td>Inspection date</td><td>{{.Date}}</td></tr>
  <tr><td>Responsible</td><td>{{.Responsible}}</td></tr>
  <tr><td>Generated</td><td>{{.GeneratedAt}}</td></tr>
</table>

<h2>Summary</h2>
<table>
  <tr><th>Images analyzed</th><th>Defects detected</th></tr>
  <tr><td>{{.TotalImages}}</td><td>{{.TotalDetections}}</td></tr>
</table>
{{if .ClassCounts}}
<table>
  <tr><th>Defect class</th><th>Count</th></tr>
  {{range .ClassCounts}}<tr><td>{{.ClassName}}</td><td>{{.Count}}</td></tr>
  {{end}}
</table>
{{end}}

{{range .Images}}
<div class="image-block">
  <h2>Image {{.Index}}</h2>
  {{if .Missing}}<p class="missing">Image file is no longer available.</p>
  {{else}}<img src="{{.DataURI}}" alt="Image {{.Index}}">{{end}}
  {{if .Detections}}
  <table>
    <tr><th>Defect</th><th>Confidence</th><th>Location</th></tr>
    {{range .Detections}}<tr><td>{{.ClassName}}</td><td>{{.Confidence}}</td><td>{{.Box}}</td></tr>
    {{end}}
  </table>
  {{else}}<p>No defects detected in this image.</p>{{end}}
</div>
{{end}}
</body>
</html>
`))
