package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/auth"
)

// GenerateReport renders the inspection report PDF and streams it back.
func (c *Controller) GenerateReport(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	projectID := ctx.Param("projectId")
	inspectionID := ctx.Param("inspectionId")

	// Ownership gate before any rendering work.
	if _, err := c.Projects.Get(user, projectID); err != nil {
		return c.ServiceError(ctx, err, "Failed to get project")
	}

	pdf, err := c.Reports.GeneratePDF(ctx.Request().Context(), projectID, inspectionID)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to generate report")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "inspection-report-"+inspectionID+".pdf"))
	return ctx.Blob(http.StatusOK, "application/pdf", pdf)
}
