package handlers

import (
	"time"

	"adforge/internal/services/spend"
	"adforge/internal/services/wallet"
	"adforge/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	walletService    wallet.Service
	spendService     *spend.Service
	reconcileTimeout time.Duration
}

func NewAdminHandler(walletService wallet.Service, spendService *spend.Service, reconcileTimeout time.Duration) *AdminHandler {
	return &AdminHandler{
		walletService:    walletService,
		spendService:     spendService,
		reconcileTimeout: reconcileTimeout,
	}
}

type creditRequest struct {
	Amount      int64  `json:"amount" validate:"required,min=1"`
	Description string `json:"description" validate:"max=500"`
	Reference   string `json:"reference" validate:"max=128"`
	AccountType string `json:"account_type" validate:"omitempty,oneof=trial paid"`
}

// CreditWallet tops up a user's wallet, optionally switching the account type.
func (h *AdminHandler) CreditWallet(c *fiber.Ctx) error {
	var req creditRequest
	if ok, err := utils.ParseAndValidate(c, &req); !ok {
		return err
	}
	userID := c.Params("userId")

	entry, err := h.walletService.CreditPoints(c.UserContext(), wallet.CreditRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
		Reference:   req.Reference,
	})
	if err != nil {
		return respondError(c, err)
	}

	if req.AccountType != "" {
		current, err := h.walletService.GetProfile(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		if err := h.walletService.SetAccount(c.UserContext(), userID, req.AccountType, current.IsAdmin); err != nil {
			return respondError(c, err)
		}
	}

	return utils.Success(c, fiber.Map{
		"entry": entry,
	})
}

type refundRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *AdminHandler) RefundOrder(c *fiber.Ctx) error {
	var req refundRequest
	if len(c.Body()) > 0 {
		if ok, err := utils.ParseAndValidate(c, &req); !ok {
			return err
		}
	}

	entry, err := h.spendService.Refund(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"entry": entry,
	})
}

// Reconcile runs one settlement sweep now.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	timeout := h.reconcileTimeout
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return utils.BadRequest(c, "older_than must be a duration such as 10m")
		}
		timeout = d
	}

	result, err := h.spendService.Reconcile(c.UserContext(), timeout)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, result)
}
