package lsp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
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

func TestDecodersCoverEveryRequestKind(t *testing.T) {
	for _, kind := range []api.RequestKind{
		api.ReqDependencyGraph, api.ReqCallGraph, api.ReqAnalyzeImpact,
		api.ReqFindUnusedCode, api.ReqCoupling, api.ReqEntryPoints,
		api.ReqSignatureSearch, api.ReqComplexity, api.ReqTextSearch,
		api.ReqMemoryStore, api.ReqMemorySearch, api.ReqMemoryGet,
		api.ReqMemoryContext, api.ReqFileRemoved, api.ReqIngest,
	} {
		_, ok := decoders[kind]
		require.Truef(t, ok, "missing decoder for %s", kind)
	}
}

func TestDecodeParseResultsParsesArray(t *testing.T) {
	v, err := decodeParseResults(json.RawMessage(`[{"file_path":"a.go","language_tag":"go","content_hash":"h1"}]`))
	require.NoError(t, err)
	results, ok := v.([]api.ParseResult)
	require.True(t, ok)
	require.Len(t, results, 1)
	require.Equal(t, "a.go", results[0].FilePath)
}

func TestRequestIDStringHandlesBothKinds(t *testing.T) {
	require.Equal(t, "abc", requestIDString(jsonrpc2.ID{IsString: true, Str: "abc"}))
	require.Equal(t, "7", requestIDString(jsonrpc2.ID{Num: 7}))
}

func TestCommandNamesListsEveryDecoder(t *testing.T) {
	require.Len(t, commandNames(), len(decoders))
}

func TestHandleExecuteCommandRoutesThroughCoordinator(t *testing.T) {
	s := New(newTestCoordinator(t))
	params := executeCommandParams{
		Command:   string(api.ReqTextSearch),
		Arguments: []json.RawMessage{[]byte(`{"query":"invoice","limit":5}`)},
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	decode, ok := decoders[api.ReqTextSearch]
	require.True(t, ok)

	var decodedParams executeCommandParams
	require.NoError(t, json.Unmarshal(raw, &decodedParams))
	value, err := decode(decodedParams.Arguments[0])
	require.NoError(t, err)

	resp, err := s.coord.Execute(
		context.Background(), "req-1", api.ReqTextSearch, value,
	)
	require.NoError(t, err)
	require.NotNil(t, resp)
}
