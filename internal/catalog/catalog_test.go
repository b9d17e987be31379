package catalog_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marchdb/march/internal/catalog"
	"github.com/marchdb/march/internal/global"
	"github.com/marchdb/march/internal/interp"
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

const basicDoc = `
core:
  add_i64: !prim
    params: [i64, i64]
    results: [i64]
  plus_one:
    !word
    params: [i64]
    results: [i64]
    stack:
      - {op: arg, index: 0, type: i64}
      - {op: lit, value: !i64 1}
      - {op: prim, name: core/add_i64}
`

func TestImportEffectPrimWord(t *testing.T) {
	st := newStore(t)
	globals := global.New()
	im := catalog.New(st, globals)

	report, err := im.Import([]byte(basicDoc))
	require.NoError(t, err)
	require.NotEmpty(t, report.Lines)

	primCID, ok, err := st.NameGet("prim", "core/add_i64")
	require.NoError(t, err)
	require.True(t, ok)

	wordCID, ok, err := st.NameGet("word", "core/plus_one")
	require.NoError(t, err)
	require.True(t, ok)

	bareCID, ok, err := st.NameGet("word", "plus_one")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wordCID, bareCID)

	reg := prim.NewRegistry()
	reg.Register(primCID, prim.AddI64)

	it := interp.New(st, globals, reg)
	out, err := it.Run(wordCID, []types.Value{types.I64Value(41)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(42), out[0].I64)
}

const guardOverloadDoc = `
math:
  is_zero: !guard
    params: [i64]
    results: [i64]
    stack:
      - {op: arg, index: 0, type: i64}
      - {op: lit, value: !i64 0}
      - {op: prim, name: core/eq_i64}
  classify: !overloads
    - guard: math/is_zero
      params: [i64]
      results: [i64]
      stack:
        - {op: lit, value: !i64 0}
    - params: [i64]
      results: [i64]
      stack:
        - {op: lit, value: !i64 1}
core:
  eq_i64: !prim
    params: [i64, i64]
    results: [i64]
`

func TestImportGuardAndOverloads(t *testing.T) {
	st := newStore(t)
	globals := global.New()
	im := catalog.New(st, globals)

	_, err := im.Import([]byte(guardOverloadDoc))
	require.NoError(t, err)

	eqCID, ok, err := st.NameGet("prim", "core/eq_i64")
	require.NoError(t, err)
	require.True(t, ok)

	guardCID, ok, err := st.NameGet("guard", "math/is_zero")
	require.NoError(t, err)
	require.True(t, ok)

	classifyCID, ok, err := st.NameGet("word", "math/classify")
	require.NoError(t, err)
	require.True(t, ok)

	reg := prim.NewRegistry()
	reg.Register(eqCID, prim.EqI64)

	it := interp.New(st, globals, reg)

	// The guard word itself must evaluate standalone as a guard-shaped word.
	guardOut, err := it.Run(guardCID, []types.Value{types.I64Value(0)})
	require.NoError(t, err)
	require.Equal(t, int64(1), guardOut[0].I64)

	zeroOut, err := it.Run(classifyCID, []types.Value{types.I64Value(0)})
	require.NoError(t, err)
	require.Equal(t, int64(0), zeroOut[0].I64)

	nonZeroOut, err := it.Run(classifyCID, []types.Value{types.I64Value(5)})
	require.NoError(t, err)
	require.Equal(t, int64(1), nonZeroOut[0].I64)
}

const snapshotDoc = `
cfg:
  defaults: !snapshot
    retries: !i64 3
    label: !text "prod"
`

func TestImportSnapshotWritesLiveStoreAndRecordsObject(t *testing.T) {
	st := newStore(t)
	globals := global.New()
	im := catalog.New(st, globals)

	_, err := im.Import([]byte(snapshotDoc))
	require.NoError(t, err)

	v, err := globals.Read("cfg", "retries")
	require.NoError(t, err)
	require.Equal(t, int64(3), v.I64)

	v, err = globals.Read("cfg", "label")
	require.NoError(t, err)
	require.Equal(t, "prod", v.Text)

	_, ok, err := st.NameGet("gstate", "cfg/defaults")
	require.NoError(t, err)
	require.True(t, ok)
}
