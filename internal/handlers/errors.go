package handlers

import (
	"math"
	"strconv"
	"time"

	apperrors "adforge/internal/errors"
	"adforge/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindInsufficientFunds:  fiber.StatusPaymentRequired,
	apperrors.KindDailyLimit:         fiber.StatusTooManyRequests,
	apperrors.KindCooldown:           fiber.StatusTooManyRequests,
	apperrors.KindNotFound:           fiber.StatusNotFound,
	apperrors.KindInvalidTransition:  fiber.StatusConflict,
	apperrors.KindDuplicateCharge:    fiber.StatusConflict,
	apperrors.KindInvalidArgument:    fiber.StatusBadRequest,
	apperrors.KindStorageUnavailable: fiber.StatusServiceUnavailable,
}

// errorBody renders a domain error with its structured context.
func errorBody(de *apperrors.DomainError) fiber.Map {
	body := fiber.Map{
		"error": de.Message,
		"code":  de.Code,
	}
	switch de.Code {
	case apperrors.KindInsufficientFunds:
		body["available"] = de.Available
		body["requested"] = de.Requested
	case apperrors.KindDailyLimit:
		body["limit"] = de.Limit
		body["used"] = de.Used
	}
	if de.ResetAt != nil {
		body["reset_at"] = de.ResetAt.UTC().Format(time.RFC3339)
	}
	return body
}

// respondError maps err onto an HTTP response. Unknown errors become 500
// without leaking their text.
func respondError(c *fiber.Ctx, err error) error {
	de, ok := apperrors.As(err)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"path":  c.Path(),
			"error": err.Error(),
		}).Error("request failed")
		return utils.InternalError(c, "Internal server error")
	}

	status, known := kindStatus[de.Code]
	if !known {
		status = fiber.StatusInternalServerError
	}
	if de.RetryAfter > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(de.RetryAfter.Seconds()))))
	}
	if status >= fiber.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"path":  c.Path(),
			"error": err.Error(),
		}).Error("request failed")
	}
	return utils.Respond(c, status, errorBody(de))
}
