package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/service"
)

type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Export downloads the checklist spreadsheet, or uploads it and returns a
// presigned link when ?publish=true.
func (h *ReportHandler) Export(c *gin.Context) {
	t, ok := parseType(c, c.Param("type"))
	if !ok {
		return
	}

	if c.Query("publish") == "true" {
		published, err := h.reports.Publish(c.Request.Context(), actor(c), c.Param("id"), t)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, published)
		return
	}

	report, err := h.reports.Build(c.Request.Context(), actor(c), c.Param("id"), t)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.FileName))
	c.Data(http.StatusOK, service.XLSXContentType, report.Data)
}
