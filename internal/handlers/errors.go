// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/utils"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindInsufficientBalance:           http.StatusPaymentRequired,
	services.KindInsufficientAllowance:         http.StatusPaymentRequired,
	services.KindAlreadyOnList:                 http.StatusConflict,
	services.KindCallerIsOwner:                 http.StatusForbidden,
	services.KindCallerIsNotOwner:              http.StatusForbidden,
	services.KindNotOnPossibleBuyersList:       http.StatusNotFound,
	services.KindNotOnBuyersList:               http.StatusNotFound,
	services.KindTransferError:                 http.StatusBadGateway,
	services.KindContractReportInsertionFailed: http.StatusBadGateway,
	services.KindNotFound:                      http.StatusNotFound,
	services.KindInvalidRequest:                http.StatusBadRequest,
	services.KindConflict:                      http.StatusConflict,
	services.KindUnauthorized:                  http.StatusUnauthorized,
}

var kindMessage = map[services.ErrorKind]string{
	services.KindInsufficientBalance:           i18n.KeyPaymentInsufficientBalance,
	services.KindInsufficientAllowance:         i18n.KeyPaymentInsufficientAllowance,
	services.KindAlreadyOnList:                 i18n.KeyPurchaseAlreadyOnList,
	services.KindCallerIsOwner:                 i18n.KeyPurchaseCallerIsOwner,
	services.KindCallerIsNotOwner:              i18n.KeyListingNotOwner,
	services.KindNotOnPossibleBuyersList:       i18n.KeyPurchaseNotPending,
	services.KindNotOnBuyersList:               i18n.KeyPurchaseNotConfirmed,
	services.KindTransferError:                 i18n.KeyPaymentTransferFailed,
	services.KindContractReportInsertionFailed: i18n.KeyPaymentReportFailed,
}

// respondError writes err as an API error. Domain errors use their kind as
// the error code; anything else is a 500 and is attached to the context for
// the request logger.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		utils.ValidationErrorResponse(c, utils.GetValidationErrors(verrs))
		return
	}

	var domainErr *services.Error
	if errors.As(err, &domainErr) {
		status, ok := kindStatus[domainErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		message := domainErr.Message
		if key, ok := kindMessage[domainErr.Kind]; ok {
			message = i18n.T(lang, key)
		}
		if message == "" {
			message = string(domainErr.Kind)
		}
		if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
			_ = c.Error(err)
		}
		utils.ErrorResponse(c, status, string(domainErr.Kind), message, nil)
		return
	}

	_ = c.Error(err)
	utils.InternalErrorResponse(c, "")
}

// bindJSON decodes and validates the request body, writing a 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

func currentAccount(c *gin.Context) (uuid.UUID, bool) {
	account, ok := utils.GetAccountFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
	}
	return account, ok
}
