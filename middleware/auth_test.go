package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func ownerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(OwnerID(r.Context())))
	})
}

func TestCreateAndParseJWT(t *testing.T) {
	token, err := CreateJWT(testSecret, "alice", "Alice", time.Hour)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}

	claims, err := ParseJWT(testSecret, token)
	if err != nil {
		t.Fatalf("ParseJWT() failed: %v", err)
	}
	if claims.Subject != "alice" || claims.Name != "Alice" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseJWT_Rejects(t *testing.T) {
	expired, _ := CreateJWT(testSecret, "alice", "", -time.Minute)
	wrongKey, _ := CreateJWT([]byte("other"), "alice", "", time.Hour)
	noSubject, _ := CreateJWT(testSecret, "", "", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "alice"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong key", wrongKey},
		{"no subject", noSubject},
		{"alg none", none},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWT(testSecret, tt.token); err == nil {
				t.Error("ParseJWT() should fail")
			}
		})
	}
}

func TestAuthJWT_NoSecretIsAnonymous(t *testing.T) {
	handler := AuthJWT(nil)(ownerEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200", rec.Code)
	}
	if rec.Body.String() != AnonymousOwner {
		t.Errorf("owner = %q, want %q", rec.Body.String(), AnonymousOwner)
	}
}

func TestAuthJWT_ValidToken(t *testing.T) {
	handler := AuthJWT(testSecret)(ownerEcho())
	token, _ := CreateJWT(testSecret, "alice", "", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "alice" {
		t.Errorf("owner = %q, want alice", rec.Body.String())
	}
}

func TestAuthJWT_Unauthorized(t *testing.T) {
	handler := AuthJWT(testSecret)(ownerEcho())

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "Authorization header is required"},
		{"wrong scheme", "Basic abc", "Authorization header format must be Bearer {token}"},
		{"bad token", "Bearer nope", "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want 401", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body["error"] != tt.want {
				t.Errorf("error = %q, want %q", body["error"], tt.want)
			}
		})
	}
}

func TestOwnerID_NoClaims(t *testing.T) {
	if got := OwnerID(context.Background()); got != AnonymousOwner {
		t.Errorf("OwnerID() = %q, want %q", got, AnonymousOwner)
	}
}
