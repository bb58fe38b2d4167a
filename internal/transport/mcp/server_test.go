package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/coordinator"
	"github.com/agentic-research/codegraf/internal/resolve"
)

func newTestCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	c, err := coordinator.New(nil, nil, resolve.DefaultConfig(), 64)
	require.NoError(t, err)
	return c
}

func TestNewRegistersEveryRequestKindAsATool(t *testing.T) {
	s := New(newTestCoordinator(t), "test")
	require.NotNil(t, s.mcp)
	// Every read-only/mutation kind except ingest; ingest and
	// cancelRequest are registered separately from toolSpecs.
	require.Len(t, toolSpecs, 14)
}

func TestDecodeAsProducesConcreteRequestType(t *testing.T) {
	raw := json.RawMessage(`{"file_path":"a.go","depth":2,"direction":"imports","external":true}`)
	v, err := decodeAs[api.DependencyGraphRequest](raw)
	require.NoError(t, err)
	req, ok := v.(api.DependencyGraphRequest)
	require.True(t, ok)
	require.Equal(t, "a.go", req.FilePath)
	require.Equal(t, 2, req.Depth)
	require.True(t, req.External)
}

func TestDecodeAsEmptyRawYieldsZeroValue(t *testing.T) {
	v, err := decodeAs[api.ComplexityRequest](nil)
	require.NoError(t, err)
	require.Equal(t, api.ComplexityRequest{}, v)
}

func TestDecodeStringUnwrapsJSONString(t *testing.T) {
	v, err := decodeString(json.RawMessage(`"a.go"`))
	require.NoError(t, err)
	require.Equal(t, "a.go", v)
}

func TestExecuteRoutesTextSearchThroughCoordinator(t *testing.T) {
	s := New(newTestCoordinator(t), "test")
	result, err := s.execute(context.Background(), api.ReqTextSearch, api.TextSearchRequest{Query: "invoice", Limit: 10})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.False(t, result.IsError)
}

func TestExecuteSurfacesCoordinatorErrorAsToolError(t *testing.T) {
	s := New(newTestCoordinator(t), "test")
	result, err := s.execute(context.Background(), api.ReqMemoryGet, "does-not-exist")
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestCancelToolReportsFalseForUnknownRequest(t *testing.T) {
	c := newTestCoordinator(t)
	cancelled := c.Cancel("no-such-request")
	require.False(t, cancelled)
}
