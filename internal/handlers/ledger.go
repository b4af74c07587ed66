// internal/handlers/ledger.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/utils"
)

type LedgerHandler struct {
	ledgerService *services.LedgerService
}

func NewLedgerHandler(ledgerService *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// GET /ledger/supply
func (h *LedgerHandler) Supply(c *gin.Context) {
	supply, err := h.ledgerService.Supply(c.Request.Context())
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			utils.ErrorResponse(c, 404, "NOT_FOUND", i18n.T(utils.GetLangFromContext(c), i18n.KeyLedgerNotInitialized), nil)
			return
		}
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, supply)
}

// GET /ledger/balances/:account
func (h *LedgerHandler) Balance(c *gin.Context) {
	account, ok := uuidParam(c, "account")
	if !ok {
		return
	}

	balance, err := h.ledgerService.BalanceOf(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"account": account,
		"balance": balance,
	})
}

// GET /ledger/allowances/:owner/:spender
func (h *LedgerHandler) Allowance(c *gin.Context) {
	owner, ok := uuidParam(c, "owner")
	if !ok {
		return
	}
	spender, ok := uuidParam(c, "spender")
	if !ok {
		return
	}

	allowance, err := h.ledgerService.Allowance(c.Request.Context(), owner, spender)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"owner":     owner,
		"spender":   spender,
		"allowance": allowance,
	})
}

// POST /ledger/transfer
func (h *LedgerHandler) Transfer(c *gin.Context) {
	from, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.ledgerService.Transfer(c.Request.Context(), from, req.To, req.Amount); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"from":   from,
		"to":     req.To,
		"amount": req.Amount,
	})
}

// POST /ledger/approve
func (h *LedgerHandler) Approve(c *gin.Context) {
	owner, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.ApproveRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.ledgerService.Approve(c.Request.Context(), owner, req.Spender, req.Amount); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"owner":     owner,
		"spender":   req.Spender,
		"allowance": req.Amount,
	})
}

// POST /ledger/transfer-from
func (h *LedgerHandler) TransferFrom(c *gin.Context) {
	spender, ok := currentAccount(c)
	if !ok {
		return
	}

	var req services.TransferFromRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.ledgerService.TransferFrom(c.Request.Context(), req.From, spender, req.To, req.Amount); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"from":    req.From,
		"spender": spender,
		"to":      req.To,
		"amount":  req.Amount,
	})
}
