package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"adforge/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	claims := &models.UserClaims{
		UserID: "user-1",
		Email:  "a@example.com",
		Role:   models.RoleUser,
	}

	tok, err := GenerateToken(claims, testSecret, time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.UserID)
	assert.Equal(t, "user-1", parsed.Subject)
	assert.Equal(t, "a@example.com", parsed.Email)
	assert.Equal(t, tokenIssuer, parsed.Issuer)
	require.NotNil(t, parsed.ExpiresAt)
}

func TestParseToken_Rejects(t *testing.T) {
	good, err := GenerateToken(&models.UserClaims{UserID: "u"}, testSecret, time.Hour)
	require.NoError(t, err)

	expired, err := GenerateToken(&models.UserClaims{
		UserID: "u",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, testSecret, 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "other"},
		{"expired", expired, testSecret},
		{"garbage", "not.a.token", testSecret},
		{"no secret", good, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			assert.Error(t, err)
		})
	}
}

func TestParseToken_SubjectFallback(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "from-sub"},
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	claims, err := ParseToken(signed, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "from-sub", claims.UserID)
}

func TestValidateStruct(t *testing.T) {
	type payload struct {
		ToolType string `validate:"required"`
		Cost     int64  `validate:"min=1"`
		Kind     string `validate:"omitempty,oneof=paid trial"`
	}

	assert.Nil(t, ValidateStruct(payload{ToolType: "ads", Cost: 5}))

	errs := ValidateStruct(payload{Cost: 0, Kind: "gold"})
	require.Len(t, errs, 3)
	assert.Equal(t, FieldError{Field: "tool_type", Message: "is required"}, errs[0])
	assert.Equal(t, FieldError{Field: "cost", Message: "must be at least 1"}, errs[1])
	assert.Equal(t, "kind", errs[2].Field)
}

func TestGetPagination(t *testing.T) {
	tests := []struct {
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"", 1, 20, 0},
		{"?page=3&limit=10", 3, 10, 20},
		{"?page=0&limit=-4", 1, 20, 0},
		{"?limit=5000", 1, MaxPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			var got Pagination
			app.Get("/", func(c *fiber.Ctx) error {
				got = GetPagination(c, 1, 20)
				return c.SendStatus(fiber.StatusNoContent)
			})

			_, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestPaginationSetTotal(t *testing.T) {
	p := Pagination{Page: 1, Limit: 10}
	p.SetTotal(21)
	assert.Equal(t, int64(21), p.Total)
	assert.Equal(t, 3, p.LastPage)
}
