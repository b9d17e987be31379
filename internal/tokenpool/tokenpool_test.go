package tokenpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

func TestSeedAcquireRelease(t *testing.T) {
	p := New()
	entry := cid.Compute([]byte("entry"))
	p.Seed(types.DomainState, entry)

	r, err := p.Acquire(types.DomainState, types.PermRead)
	require.NoError(t, err)
	require.Equal(t, entry, r.Node)

	// Read is duplicable: acquiring again still succeeds.
	r2, err := p.Acquire(types.DomainState, types.PermRead)
	require.NoError(t, err)
	require.Equal(t, entry, r2.Node)

	w, err := p.Acquire(types.DomainState, types.PermWrite)
	require.NoError(t, err)
	require.Equal(t, entry, w.Node)
}

func TestWriteTokenIsLinear(t *testing.T) {
	p := New()
	entry := cid.Compute([]byte("entry"))
	p.Seed(types.DomainState, entry)

	_, err := p.Acquire(types.DomainState, types.PermWrite)
	require.NoError(t, err)

	// The write handle was removed; a second acquire before Release fails.
	_, err = p.Acquire(types.DomainState, types.PermWrite)
	require.ErrorIs(t, err, marcherr.ErrMissingToken)

	producer := cid.Compute([]byte("write-result"))
	p.Release(types.DomainState, producer)

	w, err := p.Acquire(types.DomainState, types.PermWrite)
	require.NoError(t, err)
	require.Equal(t, producer, w.Node)
}

func TestReleaseAdvancesReadFrontier(t *testing.T) {
	p := New()
	entry := cid.Compute([]byte("entry"))
	p.Seed(types.DomainState, entry)

	_, err := p.Acquire(types.DomainState, types.PermWrite)
	require.NoError(t, err)

	producer := cid.Compute([]byte("write-result"))
	p.Release(types.DomainState, producer)

	front, ok := p.Frontier(types.DomainState)
	require.True(t, ok)
	require.Equal(t, producer, front)

	r, err := p.Acquire(types.DomainState, types.PermRead)
	require.NoError(t, err)
	require.Equal(t, producer, r.Node)
}

func TestAcquireMissingDomain(t *testing.T) {
	p := New()
	_, err := p.Acquire(types.DomainState, types.PermRead)
	require.ErrorIs(t, err, marcherr.ErrMissingToken)
}

func TestDomainsSorted(t *testing.T) {
	p := New()
	p.Seed(types.DomainState, cid.Compute([]byte("a")))
	p.Seed(types.DomainIO, cid.Compute([]byte("b")))
	p.Seed(types.DomainFS, cid.Compute([]byte("c")))

	require.Equal(t, []types.Domain{types.DomainFS, types.DomainIO, types.DomainState}, p.Domains())
}
