// internal/handlers/listing.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/utils"
)

type ListingHandler struct {
	listingService  *services.ListingService
	registryService *services.RegistryService
	notifier        *services.NotificationService
	storageService  *services.StorageService
}

func NewListingHandler(listingService *services.ListingService, registryService *services.RegistryService, notifier *services.NotificationService, storageService *services.StorageService) *ListingHandler {
	return &ListingHandler{
		listingService:  listingService,
		registryService: registryService,
		notifier:        notifier,
		storageService:  storageService,
	}
}

func (h *ListingHandler) respond(c *gin.Context, err error) {
	if services.KindOf(err) == services.KindNotFound {
		utils.NotFoundResponse(c, "listing")
		return
	}
	respondError(c, err)
}

// POST /listings
func (h *ListingHandler) Publish(c *gin.Context) {
	owner, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.PublishRequest
	if !bindJSON(c, &req) {
		return
	}

	listing, err := h.listingService.Publish(c.Request.Context(), owner, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyListingPublished),
		"listing": listing,
	})
}

// POST /listings/cover
func (h *ListingHandler) UploadCover(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	if h.storageService == nil || !h.storageService.IsConfigured() {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "STORAGE_NOT_CONFIGURED", i18n.T(lang, i18n.KeyStorageNotConfigured), nil)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "file"), nil)
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadCover(file, header)
	if errors.Is(err, services.ErrInvalidImage) {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyStorageInvalidFile), nil)
		return
	}
	if err != nil {
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusBadGateway, "UPLOAD_FAILED", i18n.T(lang, i18n.KeyStorageUploadFailed), nil)
		return
	}

	utils.CreatedResponse(c, result)
}

// GET /listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	info, err := h.listingService.GetInfo(c.Request.Context(), id)
	if err != nil {
		h.respond(c, err)
		return
	}

	utils.SuccessResponse(c, info)
}

// GET /listings/mine
func (h *ListingHandler) ListMine(c *gin.Context) {
	owner, ok := currentAccount(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	listings, total, err := h.listingService.ListByOwner(c.Request.Context(), owner, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(listings, total, params))
}

// PUT /listings/:id/price
func (h *ListingHandler) UpdatePrice(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	requester, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.UpdatePriceRequest
	if !bindJSON(c, &req) {
		return
	}

	listing, err := h.listingService.UpdatePrice(c.Request.Context(), id, requester, req.Price)
	h.updated(c, listing, err)
}

// PUT /listings/:id/commission
func (h *ListingHandler) SetCommission(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	requester, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.SetCommissionRequest
	if !bindJSON(c, &req) {
		return
	}

	listing, err := h.listingService.SetCommissionRate(c.Request.Context(), id, requester, req.CommissionRate)
	h.updated(c, listing, err)
}

// PUT /listings/:id/report-account
func (h *ListingHandler) SetReportAccount(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	requester, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.SetReportAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	listing, err := h.listingService.SetReportAccount(c.Request.Context(), id, requester, req.ReportAccount)
	h.updated(c, listing, err)
}

func (h *ListingHandler) updated(c *gin.Context, listing interface{}, err error) {
	if err != nil {
		h.respond(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyListingUpdated),
		"listing": listing,
	})
}

// GET /listings/:id/events
func (h *ListingHandler) ListEvents(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.notifier.ListEvents(c.Request.Context(), &id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, events)
}

// GET /listings/:id/transactions
func (h *ListingHandler) ListTransactions(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	requester, ok := currentAccount(c)
	if !ok {
		return
	}

	txs, err := h.registryService.ListTransactions(c.Request.Context(), id, requester)
	if err != nil {
		h.respond(c, err)
		return
	}

	utils.SuccessResponse(c, txs)
}
