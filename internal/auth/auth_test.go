package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arm-control/acc/internal/config"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, scopes []string, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "HS256", SecretKey: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestVerifier_DisabledReturnsNil(t *testing.T) {
	v, err := NewVerifier(config.AuthConfig{Enabled: false})
	if err != nil || v != nil {
		t.Fatalf("got %v/%v, want nil/nil", v, err)
	}
}

func TestVerifier_ValidToken(t *testing.T) {
	v := newTestVerifier(t)
	claims, err := v.Verify(signToken(t, []string{ScopeControl}, "operator"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "operator" || !claims.HasScope(ScopeControl) {
		t.Fatalf("claims %+v", claims)
	}
}

func TestVerifier_RejectsBadSignature(t *testing.T) {
	v := newTestVerifier(t)
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{})
	signed, _ := other.SignedString([]byte("wrong-secret"))
	if _, err := v.Verify(signed); err == nil {
		t.Fatal("token with wrong signature accepted")
	}
}

func TestRequire_EnforcesScope(t *testing.T) {
	v := newTestVerifier(t)
	handler := Require(v, ScopeControl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong scope", "Bearer " + signToken(t, []string{ScopeRead}, "viewer"), http.StatusForbidden},
		{"right scope", "Bearer " + signToken(t, []string{ScopeControl}, "operator"), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestRequire_NilVerifierAdmitsAll(t *testing.T) {
	handler := Require(nil, ScopeControl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Subject(r.Context()) != "anonymous" {
			t.Errorf("subject %q", Subject(r.Context()))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
}
