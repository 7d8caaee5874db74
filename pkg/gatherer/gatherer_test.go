package gatherer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/pharos/pkg/artifact"
	"github.com/odvcencio/pharos/pkg/gather"
)

func TestSymbolsCompareByIdentityNotName(t *testing.T) {
	a := NewSymbol("Records")
	b := NewSymbol("Records")
	assert.NotSame(t, a, b)
	assert.Equal(t, a.String(), b.String())
}

func TestValidateMeta(t *testing.T) {
	symbol := NewSymbol("Thing")

	require.NoError(t, ValidateMeta("Thing", Meta{
		Symbol:         symbol,
		SupportedModes: []gather.Mode{gather.ModeNavigation},
	}))

	err := ValidateMeta("Thing", Meta{SupportedModes: []gather.Mode{gather.ModeNavigation}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no symbol")

	err = ValidateMeta("Thing", Meta{Symbol: symbol})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no gather modes")

	err = ValidateMeta("Thing", Meta{
		Symbol:         symbol,
		SupportedModes: []gather.Mode{"warp"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid gather mode")

	err = ValidateMeta("Thing", Meta{
		Symbol:         symbol,
		SupportedModes: []gather.Mode{gather.ModeNavigation},
		Dependencies:   map[string]*Symbol{"source": nil},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references no symbol")
}

func TestContextDependencyLookup(t *testing.T) {
	gctx := &Context{
		Dependencies: map[string]artifact.Result{
			"document": artifact.Value("<html></html>"),
			"records":  artifact.Failure(assert.AnError),
		},
	}

	value, err := gctx.Dependency("document")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", value)

	_, err = gctx.Dependency("records")
	assert.ErrorIs(t, err, assert.AnError)

	_, err = gctx.Dependency("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not provided")
}

func TestMetaSupportsMode(t *testing.T) {
	meta := Meta{SupportedModes: []gather.Mode{gather.ModeTimespan, gather.ModeNavigation}}
	assert.True(t, meta.SupportsMode(gather.ModeNavigation))
	assert.False(t, meta.SupportsMode(gather.ModeSnapshot))
}
