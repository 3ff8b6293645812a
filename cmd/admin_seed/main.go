// Command admin_seed creates a paid admin wallet and prints a bearer token
// for it, for bootstrapping a fresh deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"adforge/internal/config"
	apperrors "adforge/internal/errors"
	"adforge/internal/logging"
	"adforge/internal/models"
	"adforge/internal/repositories"
	"adforge/internal/services/wallet"
	"adforge/internal/utils"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	adminID := os.Getenv("ADMIN_USER_ID")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminID == "" || adminEmail == "" {
		logrus.Fatal("ADMIN_USER_ID and ADMIN_EMAIL must be set in environment")
	}
	startBalance := int64(config.GetIntEnv("ADMIN_START_BALANCE", 1000))
	tokenTTL := config.GetDurationEnv("ADMIN_TOKEN_TTL", 24*time.Hour)

	db, err := repositories.Open(cfg.DB)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			logrus.Warnf("Failed to close database connection: %v", err)
		}
	}()
	if err := repositories.Migrate(db); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	ledger := wallet.NewService(repositories.NewWalletRepository(db), nil, nil, wallet.Config{}, nil)

	_, created, err := ledger.InitializeWallet(ctx, models.Identity{
		UserID:        adminID,
		Email:         adminEmail,
		DisplayName:   "Administrator",
		EmailVerified: true,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize admin wallet: %v", err)
	}
	if err := ledger.SetAccount(ctx, adminID, models.AccountPaid, true); err != nil {
		logrus.Fatalf("Failed to promote admin wallet: %v", err)
	}

	if startBalance > 0 {
		_, err := ledger.CreditPoints(ctx, wallet.CreditRequest{
			UserID:      adminID,
			Amount:      startBalance,
			Description: "admin seed",
			Reference:   "seed:" + adminID,
		})
		if err != nil && apperrors.KindOf(err) != apperrors.KindDuplicateCharge {
			logrus.Fatalf("Failed to credit admin wallet: %v", err)
		}
	}

	token, err := utils.GenerateToken(&models.UserClaims{
		UserID:        adminID,
		Email:         adminEmail,
		DisplayName:   "Administrator",
		EmailVerified: true,
		Role:          models.RoleAdmin,
		Permissions:   models.GetDefaultPermissions(models.RoleAdmin),
	}, cfg.JWTSecret, tokenTTL)
	if err != nil {
		logrus.Fatalf("Failed to sign admin token: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": adminID,
		"created": created,
	}).Info("admin wallet ready")
	fmt.Println(token)
}
