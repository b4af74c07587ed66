// internal/handlers/payment.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/utils"
)

// PaymentHandler starts card payments when the service runs on the Stripe
// rail. The resulting PaymentIntent id is the proof a buyer posts with the
// purchase intent.
type PaymentHandler struct {
	listingService *services.ListingService
	stripeRail     *services.StripeRail
}

func NewPaymentHandler(listingService *services.ListingService, stripeRail *services.StripeRail) *PaymentHandler {
	return &PaymentHandler{
		listingService: listingService,
		stripeRail:     stripeRail,
	}
}

// POST /listings/:id/payment-intent
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	if h.stripeRail == nil {
		utils.ErrorResponse(c, http.StatusNotImplemented, "RAIL_UNSUPPORTED", i18n.T(lang, i18n.KeyValidationInvalid, "payment rail"), nil)
		return
	}

	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	buyer, ok := currentAccount(c)
	if !ok {
		return
	}

	listing, err := h.listingService.Get(c.Request.Context(), listingID)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			utils.NotFoundResponse(c, "listing")
			return
		}
		respondError(c, err)
		return
	}
	if listing.Owner == buyer {
		respondError(c, services.ErrCallerIsOwner)
		return
	}

	required, _, err := services.RequiredPayment(listing)
	if err != nil {
		respondError(c, err)
		return
	}

	response, err := h.stripeRail.CreatePaymentIntent(c.Request.Context(), listing, buyer, required)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, response)
}
