package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/option"
)

// newTokeninfoServer fakes the tokeninfo endpoint. The returned options use a
// plain HTTP client, mirroring production: verification must work with no
// platform credentials configured.
func newTokeninfoServer(t *testing.T, audience string) (*httptest.Server, []option.ClientOption) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"audience":%q,"user_id":"subject-1","email":"shopper@example.com","verified_email":true,"expires_in":3600}`, audience)
	}))
	opts := []option.ClientOption{
		option.WithHTTPClient(&http.Client{}),
		option.WithEndpoint(server.URL),
	}
	return server, opts
}

func TestVerifyGoogleIDTokenWithoutPlatformCredentials(t *testing.T) {
	server, opts := newTokeninfoServer(t, "client-id")
	defer server.Close()

	identity, err := verifyGoogleIDToken(context.Background(), "id-token", "client-id", opts...)
	if err != nil {
		t.Fatalf("expected verification to succeed, got %v", err)
	}
	if identity.Subject != "subject-1" {
		t.Fatalf("expected subject subject-1, got %q", identity.Subject)
	}
	if identity.Email != "shopper@example.com" {
		t.Fatalf("expected shopper email, got %q", identity.Email)
	}
	if !identity.EmailVerified {
		t.Fatal("expected email to be verified")
	}
}

func TestVerifyGoogleIDTokenRejectsForeignAudience(t *testing.T) {
	server, opts := newTokeninfoServer(t, "someone-elses-client")
	defer server.Close()

	_, err := verifyGoogleIDToken(context.Background(), "id-token", "client-id", opts...)
	if !errors.Is(err, ErrInvalidGoogleAudience) {
		t.Fatalf("expected ErrInvalidGoogleAudience, got %v", err)
	}
}
