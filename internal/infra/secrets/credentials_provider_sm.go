// internal/infra/secrets/credentials_provider_sm.go
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrCredentialsNotConfigured = errors.New("credentials_provider: not configured")
	ErrCredentialsNotFound      = errors.New("credentials_provider: secret not found")
)

// SecretAccessor is the part of *secretmanager.Client used here.
type SecretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// CredentialsProviderSM loads a service account JSON from Secret Manager.
type CredentialsProviderSM struct {
	Client    SecretAccessor
	ProjectID string
	Version   string
}

// NewCredentialsProviderSM creates its own Secret Manager client (ADC).
func NewCredentialsProviderSM(ctx context.Context, projectID string) (*CredentialsProviderSM, *secretmanager.Client, error) {
	pid := strings.TrimSpace(projectID)
	if pid == "" {
		return nil, nil, fmt.Errorf("%w: projectID is empty", ErrCredentialsNotConfigured)
	}
	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("credentials_provider: secretmanager.NewClient: %w", err)
	}
	return &CredentialsProviderSM{Client: c, ProjectID: pid, Version: "latest"}, c, nil
}

// SecretName builds projects/<p>/secrets/<id>/versions/<v>.
func (p *CredentialsProviderSM) SecretName(secretID string) string {
	ver := strings.TrimSpace(p.Version)
	if ver == "" {
		ver = "latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", p.ProjectID, strings.TrimSpace(secretID), ver)
}

// Load returns the secret payload.
func (p *CredentialsProviderSM) Load(ctx context.Context, secretID string) ([]byte, error) {
	if p == nil || p.Client == nil {
		return nil, ErrCredentialsNotConfigured
	}
	if strings.TrimSpace(secretID) == "" {
		return nil, fmt.Errorf("%w: secretID is empty", ErrCredentialsNotConfigured)
	}

	name := p.SecretName(secretID)
	res, err := p.Client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
		}
		return nil, fmt.Errorf("credentials_provider: AccessSecretVersion(%s): %w", name, err)
	}
	if res == nil || res.Payload == nil || len(res.Payload.Data) == 0 {
		return nil, fmt.Errorf("%w: empty payload (%s)", ErrCredentialsNotFound, name)
	}
	return res.Payload.Data, nil
}

// ClientOption loads the secret and wraps it as a GCP client option.
func (p *CredentialsProviderSM) ClientOption(ctx context.Context, secretID string) (option.ClientOption, error) {
	b, err := p.Load(ctx, secretID)
	if err != nil {
		return nil, err
	}
	return option.WithCredentialsJSON(b), nil
}
