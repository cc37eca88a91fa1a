package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedClient struct {
	name string
}

func (c *namedClient) Name() string { return c.name }
func (c *namedClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	return nil, nil
}
func (c *namedClient) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	return nil, nil
}
func (c *namedClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	return nil, nil
}
func (c *namedClient) Status(ctx context.Context, req StatusRequest) (*StatusResult, error) {
	return nil, nil
}
func (c *namedClient) ValidateCallback(payload CallbackPayload) bool { return true }
func (c *namedClient) ParseCallback(payload CallbackPayload) (*CallbackData, error) {
	return &CallbackData{}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry("alpha")
	alpha := &namedClient{name: "alpha"}
	beta := &namedClient{name: "beta"}
	require.NoError(t, r.Register(alpha))
	require.NoError(t, r.Register(beta))

	got, err := r.Resolve("beta")
	require.NoError(t, err)
	require.Same(t, beta, got)

	// Empty name falls back to the default.
	got, err = r.Resolve("")
	require.NoError(t, err)
	require.Same(t, alpha, got)

	_, err = r.Resolve("gamma")
	ge, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, KindConfig, ge.Kind)
	require.Equal(t, "UNKNOWN_GATEWAY", ge.Code)
}

func TestRegistryRegisterRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewRegistry("alpha")
	require.NoError(t, r.Register(&namedClient{name: "alpha"}))

	err := r.Register(&namedClient{name: "alpha"})
	ge, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, "DUPLICATE", ge.Code)

	err = r.Register(&namedClient{name: ""})
	ge, ok = AsError(err)
	require.True(t, ok)
	require.Equal(t, "EMPTY_NAME", ge.Code)
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry("b")
	require.NoError(t, r.Register(&namedClient{name: "b"}))
	require.NoError(t, r.Register(&namedClient{name: "a"}))
	require.Equal(t, []string{"a", "b"}, r.Names())
}
