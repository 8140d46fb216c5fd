package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-mive/mive/mive/indexer"
)

func TestActionFilterApply(t *testing.T) {
	f, err := New(`Type == "transfer"`)
	require.NoError(t, err)

	actions := []indexer.Action{
		{Type: "transfer"},
		{Type: "mint"},
		{Type: "transfer"},
	}

	out, err := f.Apply(actions)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, a := range out {
		require.Equal(t, "transfer", a.Type)
	}
}

func TestActionFilterInvalidExpression(t *testing.T) {
	_, err := New("not a valid bexpr (((")
	require.Error(t, err)
}
