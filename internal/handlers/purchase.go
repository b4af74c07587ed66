// internal/handlers/purchase.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/utils"
)

// PurchaseHandler exposes the buyer lifecycle of a listing: intent,
// owner confirmation, delivery and access checks.
type PurchaseHandler struct {
	registryService *services.RegistryService
	accessService   *services.AccessService
}

func NewPurchaseHandler(registryService *services.RegistryService, accessService *services.AccessService) *PurchaseHandler {
	return &PurchaseHandler{
		registryService: registryService,
		accessService:   accessService,
	}
}

// POST /listings/:id/intents
func (h *PurchaseHandler) PostIntent(c *gin.Context) {
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	buyer, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.BuyIntentRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.registryService.PostIntent(c.Request.Context(), listingID, buyer, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyPurchaseIntentRecorded),
		"buyer":   record,
	})
}

// GET /listings/:id/intents/:account/key
func (h *PurchaseHandler) GetPendingKey(c *gin.Context) {
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	account, ok := uuidParam(c, "account")
	if !ok {
		return
	}
	requester, ok := currentAccount(c)
	if !ok {
		return
	}

	key, err := h.registryService.GetPendingKey(c.Request.Context(), listingID, account, requester)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"account":    account,
		"public_key": key,
	})
}

// POST /listings/:id/intents/:account/confirm
func (h *PurchaseHandler) ConfirmBuyer(c *gin.Context) {
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	account, ok := uuidParam(c, "account")
	if !ok {
		return
	}
	requester, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.ConfirmBuyerRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.registryService.ConfirmBuyer(c.Request.Context(), listingID, account, requester, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":      i18n.T(utils.GetLangFromContext(c), i18n.KeyPurchaseConfirmed),
		"buyer":        result.Buyer,
		"settlement":   result.Settlement,
		"receipt_code": result.ReceiptCode,
	})
}

// GET /listings/:id/delivery
func (h *PurchaseHandler) RetrieveDelivery(c *gin.Context) {
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	requester, ok := currentAccount(c)
	if !ok {
		return
	}

	account := requester
	if q := c.Query("account"); q != "" {
		parsed, err := models.ParseAccount(q)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "account"), nil)
			return
		}
		account = parsed
	}

	delivery, err := h.registryService.RetrieveDelivery(c.Request.Context(), listingID, account, requester)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, delivery)
}

// GET /listings/:id/access
func (h *PurchaseHandler) ResolveAccess(c *gin.Context) {
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	caller, ok := currentAccount(c)
	if !ok {
		return
	}

	access, err := h.accessService.ResolveAccess(c.Request.Context(), listingID, caller, utils.GetLangFromContext(c))
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			utils.NotFoundResponse(c, "listing")
			return
		}
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, access)
}

// GET /listings/:id/buyers/:account
func (h *PurchaseHandler) IsOnList(c *gin.Context) {
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	account, ok := uuidParam(c, "account")
	if !ok {
		return
	}

	onList, err := h.registryService.IsOnList(c.Request.Context(), listingID, account)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			utils.NotFoundResponse(c, "listing")
			return
		}
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"account": account,
		"on_list": onList,
	})
}
