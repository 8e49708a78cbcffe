package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"booking/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	InitMiddleware(testSecret)

	app.Get("/test", AuthRequired, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"userID": c.Locals(LocalUserID),
			"role":   c.Locals(LocalRole),
		})
	})

	generateToken := func(userID uint, role models.Role, exp time.Duration) string {
		s, err := IssueToken(testSecret, userID, role, exp)
		require.NoError(t, err)
		return s
	}

	missingRole := func() string {
		claims := jwt.MapClaims{
			"sub": strconv.FormatUint(123, 10),
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		return s
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
		expectedRole   string
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + generateToken(123, models.RoleSupervisor, time.Hour),
			expectedStatus: http.StatusOK,
			expectedUserID: 123,
			expectedRole:   "supervisor",
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Format",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Token",
			authHeader:     "Bearer malformed.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + generateToken(123, models.RoleFaculty, -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Role",
			authHeader:     "Bearer " + missingRole(),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
				assert.Equal(t, tt.expectedRole, body["role"])
			} else {
				assert.Equal(t, models.CodeUnauthorized, body["code"])
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	app := fiber.New()
	InitMiddleware(testSecret)

	app.Get("/reports", AuthRequired, RequireRole(models.RoleTrustee), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for role, want := range map[models.Role]int{
		models.RoleTrustee:    http.StatusOK,
		models.RoleSupervisor: http.StatusForbidden,
		models.RoleFaculty:    http.StatusForbidden,
	} {
		t.Run(string(role), func(t *testing.T) {
			token, err := IssueToken(testSecret, 1, role, time.Hour)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/reports", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, want, resp.StatusCode)
		})
	}
}
