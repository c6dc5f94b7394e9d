package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/detection"
)

// SwitchDetectionModel proxies a model swap to the detection service.
func (c *Controller) SwitchDetectionModel(ctx echo.Context) error {
	name := detection.ModelName(ctx.Param("name"))
	message, err := c.Detector.SwitchModel(ctx.Request().Context(), name)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to switch detection model")
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": message})
}
