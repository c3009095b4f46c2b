package sandbox

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthenticator_Validate(t *testing.T) {
	auth, err := NewAuthenticator("secret", "sandbox")
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	token, err := auth.IssueToken("alice", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if subject, err := auth.Validate(token); err != nil || subject != "alice" {
		t.Fatalf("Validate = (%q, %v), want alice", subject, err)
	}

	expired, _ := auth.IssueToken("alice", -time.Minute)
	if _, err := auth.Validate(expired); err == nil {
		t.Fatal("expired token accepted")
	}

	other, _ := NewAuthenticator("secret", "someone-else")
	foreign, _ := other.IssueToken("alice", time.Minute)
	if _, err := auth.Validate(foreign); err == nil {
		t.Fatal("token from another issuer accepted")
	}

	wrongKey, _ := NewAuthenticator("other-secret", "sandbox")
	forged, _ := wrongKey.IssueToken("alice", time.Minute)
	if _, err := auth.Validate(forged); err == nil {
		t.Fatal("token signed with another key accepted")
	}

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
		Issuer:  "sandbox",
	}).SignedString([]byte("secret"))
	if _, err := auth.Validate(noExpiry); err == nil {
		t.Fatal("token without expiry accepted")
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "sandbox",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	if _, err := auth.Validate(hs512); err == nil {
		t.Fatal("token with an unexpected algorithm accepted")
	}
}

func TestNewAuthenticator_RequiresSecret(t *testing.T) {
	if _, err := NewAuthenticator("", ""); err == nil {
		t.Fatal("expected an error for an empty secret")
	}
}

func TestAuthenticator_Middleware(t *testing.T) {
	auth, _ := NewAuthenticator("secret", "")
	token, _ := auth.IssueToken("bob", time.Minute)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"blank token", "Bearer   ", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			auth.Middleware(next).ServeHTTP(rec, r)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}
