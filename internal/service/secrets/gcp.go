package secrets

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"context"
	"fmt"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"log/slog"
	"strings"
)

// SecretManager reads the latest version of secrets from Google Secret Manager.
type SecretManager struct {
	client    *secretmanager.Client
	projectID string
	log       *slog.Logger
}

func NewSecretManager(ctx context.Context, projectID, credentialsFile string, log *slog.Logger) (*SecretManager, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}
	return &SecretManager{
		client:    client,
		projectID: projectID,
		log:       log.With(sl.Module("secrets.gcp")),
	}, nil
}

func (s *SecretManager) resourceName(name string) string {
	if strings.HasPrefix(name, "projects/") {
		return name
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
}

func (s *SecretManager) Secret(ctx context.Context, name string) (string, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.resourceName(name),
	})
	if err != nil {
		s.log.With(slog.String("secret", name)).Error("access secret version", sl.Err(err))
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("%w: %v", entity.ErrNotFound, err)
		}
		return "", fmt.Errorf("%w: %v", entity.ErrStoreUnavailable, err)
	}
	s.log.With(slog.String("secret", name)).Debug("secret retrieved")
	return string(resp.GetPayload().GetData()), nil
}

func (s *SecretManager) Close() error {
	return s.client.Close()
}
