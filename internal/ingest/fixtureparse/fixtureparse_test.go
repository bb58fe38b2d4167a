package fixtureparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentic-research/codegraf/api"
)

const sampleSource = `package billing

type Invoice struct{}

func NewInvoice() *Invoice {
	return &Invoice{}
}

func (inv *Invoice) Total() int {
	return 0
}

func (inv Invoice) unexportedHelper() {
}
`

func TestParseGoFileExtractsFunctionsAndMethods(t *testing.T) {
	result, err := ParseGoFile("billing/invoice.go", []byte(sampleSource))
	require.NoError(t, err)

	require.Equal(t, "billing/invoice.go", result.FilePath)
	require.Equal(t, "go", result.LanguageTag)
	require.NotEmpty(t, result.ContentHash)

	byName := make(map[string]api.ParsedSymbol)
	for _, sym := range result.Symbols {
		byName[sym.QualifiedName] = sym
	}

	newInvoice, ok := byName["billing.NewInvoice"]
	require.True(t, ok)
	require.Equal(t, api.KindFunction, newInvoice.Kind)
	require.Equal(t, api.VisibilityPublic, newInvoice.Visibility)
	require.Greater(t, newInvoice.ByteRange.End, newInvoice.ByteRange.Start)

	total, ok := byName["billing.Invoice.Total"]
	require.True(t, ok)
	require.Equal(t, api.KindMethod, total.Kind)
	require.Equal(t, api.VisibilityPublic, total.Visibility)

	helper, ok := byName["billing.Invoice.unexportedHelper"]
	require.True(t, ok)
	require.Equal(t, api.VisibilityPrivate, helper.Visibility)
}

func TestParseGoFileDefaultsPackageToMainWhenMissing(t *testing.T) {
	result, err := ParseGoFile("scratch.go", []byte("func main() {}\n"))
	require.NoError(t, err)
	require.Len(t, result.Symbols, 1)
	require.Equal(t, "main.main", result.Symbols[0].QualifiedName)
}
