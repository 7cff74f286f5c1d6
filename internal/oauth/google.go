package oauth

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var ErrInvalidGoogleAudience = errors.New("invalid google audience")

// GoogleIdentity is the subset of the verified ID token used to link or
// create an account.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// VerifyGoogleIDToken validates the Google-issued ID token and checks it was
// minted for this application's client id. Tokeninfo needs no API
// credentials, so a plain HTTP client is passed to keep the service from
// resolving application default credentials.
func VerifyGoogleIDToken(ctx context.Context, idToken, clientID string) (*GoogleIdentity, error) {
	return verifyGoogleIDToken(ctx, idToken, clientID, option.WithHTTPClient(&http.Client{}))
}

func verifyGoogleIDToken(ctx context.Context, idToken, clientID string, opts ...option.ClientOption) (*GoogleIdentity, error) {
	service, err := oauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}

	info, err := service.Tokeninfo().IdToken(idToken).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	if info.Audience != clientID {
		return nil, ErrInvalidGoogleAudience
	}

	return &GoogleIdentity{
		Subject:       info.UserId,
		Email:         info.Email,
		EmailVerified: info.VerifiedEmail,
	}, nil
}
