// internal/handlers/verification.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/utils"
)

type VerificationHandler struct {
	registryService *services.RegistryService
}

func NewVerificationHandler(registryService *services.RegistryService) *VerificationHandler {
	return &VerificationHandler{
		registryService: registryService,
	}
}

// GET /verify/:code
func (h *VerificationHandler) VerifyReceipt(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	code := c.Param("code")
	if code == "" {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "code"), nil)
		return
	}

	receipt, err := h.registryService.VerifyReceipt(c.Request.Context(), code)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			utils.ErrorResponse(c, http.StatusNotFound, "INVALID_CODE", i18n.T(lang, i18n.KeyVerificationInvalidCode), nil)
			return
		}
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"verified": true,
		"message":  i18n.T(lang, i18n.KeyVerificationSuccess),
		"receipt":  receipt,
	})
}
