package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

type SecretManagerService interface {
	// AccessSecret returns the payload of the latest version of secretID. A
	// full "projects/..." resource name is used as is.
	AccessSecret(ctx context.Context, secretID string) ([]byte, error)
	Close() error
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, projectID string, opts ...option.ClientOption) (SecretManagerService, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: projectID,
	}, nil
}

func secretVersionName(projectID, secretID string) string {
	if strings.HasPrefix(secretID, "projects/") {
		if strings.Contains(secretID, "/versions/") {
			return secretID
		}
		return secretID + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretID)
}

func (s *secretManagerService) AccessSecret(ctx context.Context, secretID string) ([]byte, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretVersionName(s.projectID, secretID),
	}

	result, err := s.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to access secret version: %w", err)
	}

	return result.Payload.Data, nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

// LoadServiceAccountKey reads the Google service-account key from keyPath,
// or from Secret Manager when secretID is set instead. Returns nil when
// neither is configured.
func LoadServiceAccountKey(ctx context.Context, keyPath, secretID, projectID string) ([]byte, error) {
	if keyPath != "" {
		key, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("reading service account key: %w", err)
		}
		return key, nil
	}
	if secretID == "" {
		return nil, nil
	}
	sm, err := NewSecretManagerService(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer sm.Close()
	return sm.AccessSecret(ctx, secretID)
}
