package canon

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/types"
)

func TestEncodeValueRoundTrip(t *testing.T) {
	cases := []types.Value{
		types.I64Value(-42),
		types.F64Value(3.5),
		types.TextValue("hello"),
		types.UnitValue,
		types.QuoteValue(cid.Compute([]byte("quoted-word"))),
		types.TupleValue([]types.Value{types.I64Value(1), types.TextValue("two"), types.UnitValue}),
	}
	for _, v := range cases {
		raw, err := EncodeValue(v)
		require.NoError(t, err)
		got, err := DecodeValue(v.Kind, raw)
		require.NoError(t, err)
		require.True(t, v.Equal(got), "round-trip mismatch for %+v -> %+v", v, got)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	v := types.TupleValue([]types.Value{types.I64Value(1), types.I64Value(2)})
	a, err := EncodeValue(v)
	require.NoError(t, err)
	b, err := EncodeValue(v)
	require.NoError(t, err)
	require.Equal(t, []byte(a), []byte(b))
}

func TestCIDListSortedUnique(t *testing.T) {
	a := cid.Compute([]byte("a"))
	b := cid.Compute([]byte("b"))
	c := cid.Compute([]byte("c"))
	sorted := CIDList{a, b, c}.SortedUnique()

	require.True(t, CIDList(sorted).IsSortedUnique())
	require.NoError(t, CIDList(sorted).RequireSortedUnique("test"))
}

func TestCIDListRejectsUnsorted(t *testing.T) {
	a := cid.Compute([]byte("a"))
	b := cid.Compute([]byte("b"))
	unsorted := CIDList{b, a}
	if unsorted.IsSortedUnique() {
		t.Skip("hash collision order coincidence, nothing to test")
	}
	require.Error(t, unsorted.RequireSortedUnique("test"))
}

func TestCIDListDedupRemovesDuplicates(t *testing.T) {
	a := cid.Compute([]byte("dup"))
	deduped := CIDList{a, a, a}.SortedUnique()
	require.Len(t, deduped, 1)
}

func TestHashDeterministic(t *testing.T) {
	type sample struct {
		_   struct{} `cbor:",toarray"`
		Tag uint8
		Val string
	}
	data1, cid1, err := Hash(sample{Tag: 1, Val: "x"})
	require.NoError(t, err)
	data2, cid2, err := Hash(sample{Tag: 1, Val: "x"})
	require.NoError(t, err)
	require.Equal(t, data1, data2)
	require.Equal(t, cid1, cid2)
}
