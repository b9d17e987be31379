package interp_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marchdb/march/internal/builder"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/global"
	"github.com/marchdb/march/internal/interp"
	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/prim"
	"github.com/marchdb/march/internal/store"
	"github.com/marchdb/march/internal/types"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func putPrim(t *testing.T, st *store.Store, params, results []types.Atom) cid.CID {
	t.Helper()
	p := object.Prim{Params: params, Results: results}
	data, err := p.Encode()
	require.NoError(t, err)
	c, _, err := st.Put("prim", data)
	require.NoError(t, err)
	return c
}

// TestRunLiteralWord exercises scenario 1: a zero-arg word that always
// returns the literal 42.
func TestRunLiteralWord(t *testing.T) {
	st := newStore(t)
	b := builder.New(st, false)
	require.NoError(t, b.BeginWord(nil, nil))
	_, err := b.PushLit(types.I64Value(42))
	require.NoError(t, err)
	wordCID, _, err := b.FinishWord([]types.Atom{types.I64}, nil, "answer")
	require.NoError(t, err)

	in := interp.New(st, global.New(), prim.NewRegistry())
	out, err := in.Run(wordCID, nil)
	require.NoError(t, err)
	require.Equal(t, []types.Value{types.I64Value(42)}, out)
}

// TestRunAddConst exercises scenario 2: arg(0) lit(5) add_i64, evaluated
// against the add_i64 builtin.
func TestRunAddConst(t *testing.T) {
	st := newStore(t)
	addCID := putPrim(t, st, []types.Atom{types.I64, types.I64}, []types.Atom{types.I64})

	b := builder.New(st, false)
	require.NoError(t, b.BeginWord([]types.Atom{types.I64}, nil))
	_, err := b.PushArg(0, types.I64)
	require.NoError(t, err)
	_, err = b.PushLit(types.I64Value(5))
	require.NoError(t, err)
	_, err = b.Prim(addCID, 0)
	require.NoError(t, err)
	wordCID, _, err := b.FinishWord([]types.Atom{types.I64}, nil, "add_const")
	require.NoError(t, err)

	reg := prim.NewRegistry()
	reg.Register(addCID, prim.AddI64)

	in := interp.New(st, global.New(), reg)
	out, err := in.Run(wordCID, []types.Value{types.I64Value(10)})
	require.NoError(t, err)
	require.Equal(t, []types.Value{types.I64Value(15)}, out)
}

// TestRunStateRoundTrip exercises the state.write_i64/state.read_i64
// pair against a shared global store.
func TestRunStateRoundTrip(t *testing.T) {
	st := newStore(t)
	writeCID := putPrim(t, st, []types.Atom{types.Text, types.Text, types.I64}, []types.Atom{types.Unit})
	readCID := putPrim(t, st, []types.Atom{types.Text, types.Text}, []types.Atom{types.I64})

	gs := global.New()
	reg := prim.NewRegistry()
	reg.Register(writeCID, prim.WriteI64)
	reg.Register(readCID, prim.ReadI64)

	bw := builder.New(st, false)
	require.NoError(t, bw.BeginWord(nil, nil))
	_, err := bw.PushLit(types.TextValue("ns"))
	require.NoError(t, err)
	_, err = bw.PushLit(types.TextValue("counter"))
	require.NoError(t, err)
	_, err = bw.PushLit(types.I64Value(7))
	require.NoError(t, err)
	_, err = bw.Prim(writeCID, types.DefaultMask([]types.Domain{types.DomainState}))
	require.NoError(t, err)
	writeWordCID, _, err := bw.FinishWord([]types.Atom{types.Unit}, nil, "set_counter")
	require.NoError(t, err)

	br := builder.New(st, false)
	require.NoError(t, br.BeginWord(nil, nil))
	_, err = br.PushLit(types.TextValue("ns"))
	require.NoError(t, err)
	_, err = br.PushLit(types.TextValue("counter"))
	require.NoError(t, err)
	_, err = br.Prim(readCID, 0)
	require.NoError(t, err)
	readWordCID, _, err := br.FinishWord([]types.Atom{types.I64}, nil, "get_counter")
	require.NoError(t, err)

	in := interp.New(st, gs, reg)
	_, err = in.Run(writeWordCID, nil)
	require.NoError(t, err)
	out, err := in.Run(readWordCID, nil)
	require.NoError(t, err)
	require.Equal(t, []types.Value{types.I64Value(7)}, out)
}
