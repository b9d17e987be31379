package global

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marchdb/march/internal/types"
)

func TestSnapshotIsSortedByNamespaceAndKey(t *testing.T) {
	s := New()
	s.Write("zoo", "b", types.I64Value(1))
	s.Write("zoo", "a", types.I64Value(2))
	s.Write("alpha", "k", types.I64Value(3))

	snap := s.Snapshot()
	require.Len(t, snap.Namespaces, 2)
	require.Equal(t, "alpha", snap.Namespaces[0].Namespace)
	require.Equal(t, "zoo", snap.Namespaces[1].Namespace)
	require.Equal(t, "a", snap.Namespaces[1].Entries[0].Key)
	require.Equal(t, "b", snap.Namespaces[1].Entries[1].Key)
}

func TestWriteDeepCopiesTuples(t *testing.T) {
	s := New()
	v := types.TupleValue([]types.Value{types.I64Value(1)})
	s.Write("ns", "k", v)

	v.Tuple[0] = types.I64Value(999)

	got, err := s.Read("ns", "k")
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Tuple[0].I64)
}

func TestReadDeepCopiesOnReturn(t *testing.T) {
	s := New()
	s.Write("ns", "k", types.TupleValue([]types.Value{types.I64Value(1)}))

	got, err := s.Read("ns", "k")
	require.NoError(t, err)
	got.Tuple[0] = types.I64Value(999)

	got2, err := s.Read("ns", "k")
	require.NoError(t, err)
	require.Equal(t, int64(1), got2.Tuple[0].I64)
}

func TestReadMissingReturnsError(t *testing.T) {
	s := New()
	_, err := s.Read("ns", "missing")
	require.Error(t, err)
}

func TestResetClearsAllNamespaces(t *testing.T) {
	s := New()
	s.Write("ns", "k", types.I64Value(1))
	s.Reset()
	_, err := s.Read("ns", "k")
	require.Error(t, err)
}

func TestRestoreReplacesContents(t *testing.T) {
	s := New()
	s.Write("old", "k", types.I64Value(1))

	s.Restore(Snapshot{Namespaces: []NamespaceSnapshot{
		{Namespace: "new", Entries: []Entry{{Key: "k2", Value: types.I64Value(5)}}},
	}})

	_, err := s.Read("old", "k")
	require.Error(t, err)

	v, err := s.Read("new", "k2")
	require.NoError(t, err)
	require.Equal(t, int64(5), v.I64)
}

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	s := New()
	s.Write("counter", "value", types.I64Value(7))
	s.Write("counter", "label", types.TextValue("hits"))

	snap := s.Snapshot()
	data, err := Encode(snap)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, snap, got)
}
