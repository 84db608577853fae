package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "panel-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func jwtApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":   c.Locals(LocalUserID),
			"role": c.Locals(LocalUserRole),
		})
	})
	return app
}

func TestJWTProtectedStoresSubjectAndRole(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":   "7",
		"roles": []interface{}{"Teacher"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := jwtApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	noSubject := signToken(t, jwt.MapClaims{"role": "teacher"})
	expired := signToken(t, jwt.MapClaims{"sub": 7, "exp": time.Now().Add(-time.Hour).Unix()})

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"garbage":        "Bearer not-a-token",
		"no subject":     "Bearer " + noSubject,
		"expired":        "Bearer " + expired,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := jwtApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestSubjectFromClaimsAcceptsNumbers(t *testing.T) {
	id, err := subjectFromClaims(jwt.MapClaims{"user_id": float64(42)})
	require.NoError(t, err)
	require.Equal(t, uint(42), id)

	_, err = subjectFromClaims(jwt.MapClaims{"sub": "abc"})
	require.Error(t, err)
}
