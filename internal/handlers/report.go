// internal/handlers/report.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/utils"
)

// CallerListingHeader names the listing a report is made for.
const CallerListingHeader = "X-Caller-Listing"

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// POST /reports
func (h *ReportHandler) Insert(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	caller, err := uuid.Parse(c.GetHeader(CallerListingHeader))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, CallerListingHeader), nil)
		return
	}

	var req services.ReportRequest
	if !bindJSON(c, &req) {
		return
	}

	receipt, err := h.reportService.Insert(c.Request.Context(), caller, &req)
	if err != nil {
		if req.Selector != services.ReportSelector {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyReportUnknownSelector), nil)
			return
		}
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, receipt)
}
