package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type step func(trace []string) []string

func tag(name string) func(next step) step {
	return func(next step) step {
		return func(trace []string) []string {
			return next(append(trace, name))
		}
	}
}

func TestChain(t *testing.T) {
	require.Nil(t, Chain[step]())
	require.Nil(t, Chain[step](nil, nil))

	final := step(func(trace []string) []string { return append(trace, "final") })

	h := Chain(tag("a"), nil, tag("b"))
	require.Equal(t, []string{"a", "b", "final"}, h(final)(nil))
}
