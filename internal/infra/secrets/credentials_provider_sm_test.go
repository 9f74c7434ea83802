// internal/infra/secrets/credentials_provider_sm_test.go
package secrets

import (
	"context"
	"errors"
	"testing"

	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAccessor struct {
	payloads map[string][]byte
	err      error
	lastName string
}

func (f *fakeAccessor) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.lastName = req.GetName()
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.payloads[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "no such secret")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: b},
	}, nil
}

func TestCredentialsProviderSM_Load(t *testing.T) {
	name := "projects/p1/secrets/firebase-sa/versions/latest"
	acc := &fakeAccessor{payloads: map[string][]byte{name: []byte(`{"type":"service_account"}`)}}
	p := &CredentialsProviderSM{Client: acc, ProjectID: "p1"}

	b, err := p.Load(context.Background(), " firebase-sa ")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(b) != `{"type":"service_account"}` || acc.lastName != name {
		t.Fatalf("payload=%s name=%s", b, acc.lastName)
	}
	if _, err := p.ClientOption(context.Background(), "firebase-sa"); err != nil {
		t.Fatalf("ClientOption: %v", err)
	}
}

func TestCredentialsProviderSM_Errors(t *testing.T) {
	ctx := context.Background()

	p := &CredentialsProviderSM{Client: &fakeAccessor{}, ProjectID: "p1", Version: "3"}
	if got := p.SecretName("s"); got != "projects/p1/secrets/s/versions/3" {
		t.Fatalf("SecretName = %s", got)
	}
	if _, err := p.Load(ctx, "missing"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Fatalf("missing secret err = %v", err)
	}
	if _, err := p.Load(ctx, ""); !errors.Is(err, ErrCredentialsNotConfigured) {
		t.Fatalf("empty id err = %v", err)
	}

	var nilProvider *CredentialsProviderSM
	if _, err := nilProvider.Load(ctx, "s"); !errors.Is(err, ErrCredentialsNotConfigured) {
		t.Fatalf("nil provider err = %v", err)
	}

	boom := errors.New("boom")
	p = &CredentialsProviderSM{Client: &fakeAccessor{err: boom}, ProjectID: "p1"}
	if _, err := p.Load(ctx, "s"); !errors.Is(err, boom) {
		t.Fatalf("transport err = %v", err)
	}

	if _, _, err := NewCredentialsProviderSM(ctx, " "); !errors.Is(err, ErrCredentialsNotConfigured) {
		t.Fatalf("empty project err = %v", err)
	}
}

func TestCredentialsProviderSM_EmptyPayload(t *testing.T) {
	name := "projects/p1/secrets/s/versions/latest"
	p := &CredentialsProviderSM{Client: &fakeAccessor{payloads: map[string][]byte{name: nil}}, ProjectID: "p1"}
	if _, err := p.Load(context.Background(), "s"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Fatalf("empty payload err = %v", err)
	}
}
