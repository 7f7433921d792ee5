package authenticate

import (
	"context"
	"fmt"
	"google.golang.org/api/idtoken"
	"time"
)

const pushValidateTimeout = 10 * time.Second

// PushIdentity accepts the Google-signed OIDC token a push subscription attaches to
// each request. The token must be issued for audience and, when email is set, for
// that service account.
type PushIdentity struct {
	audience string
	email    string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewPushIdentity(audience, email string) *PushIdentity {
	return &PushIdentity{
		audience: audience,
		email:    email,
		validate: idtoken.Validate,
	}
}

func (p *PushIdentity) ValidateToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), pushValidateTimeout)
	defer cancel()

	payload, err := p.validate(ctx, token, p.audience)
	if err != nil {
		return fmt.Errorf("push token: %w", err)
	}
	if p.email == "" {
		return nil
	}
	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if email != p.email || !verified {
		return fmt.Errorf("push token issued for %q", email)
	}
	return nil
}
