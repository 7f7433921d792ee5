package webhook

import "context"

type Core interface {
	Platform(name string) (string, error)
	HandleVerification(mode, challenge, token string) (string, error)
	HandleWebhook(ctx context.Context, platform string, body []byte, signatureHeader string) (string, error)
}
