package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel/metric/noop"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSecretClient struct {
	accessFn func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	calls    int
}

func (s *stubSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	return s.accessFn(ctx, req)
}

func (s *stubSecretClient) Close() error { return nil }

func newTestFetcher(t *testing.T, client secretManagerClient, opts ...Option) *Fetcher {
	t.Helper()
	base := []Option{withClient(client), WithMeter(noop.NewMeterProvider().Meter("test")), WithFallbackFile("")}
	f, err := NewFetcher(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func TestResolveRemoteAndCache(t *testing.T) {
	client := &stubSecretClient{accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
		if req.GetName() != "projects/glaze-prod/secrets/stripe-api-key/versions/3" {
			t.Fatalf("unexpected resource %s", req.GetName())
		}
		return &secretmanagerpb.AccessSecretVersionResponse{Payload: &secretmanagerpb.SecretPayload{Data: []byte("sk_live\n")}}, nil
	}}
	f := newTestFetcher(t, client, WithDefaultProject("glaze-prod"))

	for i := 0; i < 2; i++ {
		value, err := f.ResolveSecret(context.Background(), "secret://stripe-api-key#3")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if value != "sk_live" {
			t.Fatalf("expected trimmed secret, got %q", value)
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected cached second lookup, got %d calls", client.calls)
	}
}

func TestResolveFallsBackOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(path, []byte("# local\nsecret://db-url=postgres://u:p@localhost/db?sslmode=disable\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}
	client := &stubSecretClient{accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
		return nil, status.Error(codes.PermissionDenied, "denied")
	}}
	f := newTestFetcher(t, client, WithDefaultProject("glaze-dev"), WithFallbackFile(path))

	value, err := f.Resolve(context.Background(), "sm://db-url")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "postgres://u:p@localhost/db?sslmode=disable" {
		t.Fatalf("unexpected fallback value %q", value)
	}
}

func TestResolveSurfacesNonFallbackErrors(t *testing.T) {
	client := &stubSecretClient{accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
		return nil, status.Error(codes.InvalidArgument, "bad name")
	}}
	f := newTestFetcher(t, client, WithDefaultProject("glaze-dev"))

	_, err := f.Resolve(context.Background(), "secret://x")
	if status.Code(errors.Unwrap(err)) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestResolveWithoutProjectUsesFallbackOnly(t *testing.T) {
	client := &stubSecretClient{accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
		t.Fatal("remote should not be called without a project")
		return nil, nil
	}}
	f := newTestFetcher(t, client)

	if _, err := f.Resolve(context.Background(), "secret://missing"); err == nil {
		t.Fatal("expected error for missing fallback value")
	}
}

func TestParseReference(t *testing.T) {
	ref, err := parseReference("secret://stripe?version=5&project=other")
	if err != nil {
		t.Fatalf("parseReference: %v", err)
	}
	if ref.name != "stripe" || ref.version != "5" || ref.project != "other" {
		t.Fatalf("unexpected reference %+v", ref)
	}
	if _, err := parseReference("https://example.com"); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
	if _, err := parseReference("secret://"); err == nil {
		t.Fatal("expected missing name error")
	}
}
