package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims(subject string, roles ...string) Claims {
	return Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{"registration-admin"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func serve(mw gin.HandlerFunc, header string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", mw, func(c *gin.Context) {
		id, _ := GetStaffID(c.Request.Context())
		c.String(http.StatusOK, id)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("staff-1", "staff"))

	resp := serve(JWTMiddleware(testSecret, "registration-admin", "staff"), "Bearer "+token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
	if resp.Body.String() != "staff-1" {
		t.Fatalf("expected subject in context, got %q", resp.Body.String())
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	expired := validClaims("staff-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	cases := []struct {
		name   string
		mw     gin.HandlerFunc
		header string
		status int
	}{
		{"missing header", JWTMiddleware(testSecret, ""), "", http.StatusUnauthorized},
		{"wrong scheme", JWTMiddleware(testSecret, ""), "Basic abc", http.StatusUnauthorized},
		{"wrong secret", JWTMiddleware(testSecret, ""), "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("staff-1")), http.StatusUnauthorized},
		{"expired", JWTMiddleware(testSecret, ""), "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), http.StatusUnauthorized},
		{"wrong audience", JWTMiddleware(testSecret, "mobile"), "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("staff-1")), http.StatusUnauthorized},
		{"missing subject", JWTMiddleware(testSecret, ""), "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("")), http.StatusUnauthorized},
		{"missing role", JWTMiddleware(testSecret, "", "admin"), "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("staff-1", "staff")), http.StatusForbidden},
		{"no secret", JWTMiddleware("", ""), "Bearer abc", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := serve(tc.mw, tc.header)
			if resp.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.Code)
			}
		})
	}
}
