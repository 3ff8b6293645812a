package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adforge/internal/models"
	"adforge/internal/services/notification"
	"adforge/internal/services/wallet"
	"adforge/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	streamKeepAlive       = 25 * time.Second
	defaultStreamLifetime = 30 * time.Minute
)

type WalletHandler struct {
	walletService  wallet.Service
	streamLifetime time.Duration
}

// NewWalletHandler builds the wallet handlers. A stream is closed after
// streamLifetime (30 minutes when zero) and the client reconnects.
func NewWalletHandler(walletService wallet.Service, streamLifetime time.Duration) *WalletHandler {
	if streamLifetime <= 0 {
		streamLifetime = defaultStreamLifetime
	}
	return &WalletHandler{
		walletService:  walletService,
		streamLifetime: streamLifetime,
	}
}

// extractUserClaims is a helper function to reduce duplication
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

// InitWallet creates the caller's wallet from the token identity.
func (h *WalletHandler) InitWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, created, err := h.walletService.InitializeWallet(c.UserContext(), claims.Identity())
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return utils.Respond(c, status, fiber.Map{
		"wallet":  w,
		"created": created,
	})
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.GetProfile(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"wallet": w,
	})
}

func (h *WalletHandler) ListEntries(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	p := utils.GetPagination(c, 1, wallet.DefaultListLimit)
	entries, err := h.walletService.ListEntries(c.UserContext(), claims.UserID, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}

	return utils.Success(c, utils.NewPaginatedResponse(entries, p))
}

// Stream pushes balance changes as server-sent events until the client
// goes away. The first event carries the current balance.
func (h *WalletHandler) Stream(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	events := make(chan notification.BalanceEvent, 8)
	sub, err := h.walletService.SubscribeToBalance(c.UserContext(), claims.UserID, func(evt notification.BalanceEvent) error {
		select {
		case events <- evt:
			return nil
		default:
			return errors.New("stream buffer full")
		}
	})
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	userID := claims.UserID
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()
		expire := time.NewTimer(h.streamLifetime)
		defer expire.Stop()

		for {
			select {
			case <-sub.Done():
				return
			case <-expire.C:
				return
			case evt := <-events:
				data, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: balance\ndata: %s\n\n", data)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				logrus.WithField("user_id", userID).Debug("balance stream closed by client")
				return
			}
		}
	})
	return nil
}
