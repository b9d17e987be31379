package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

func roundTrip(t *testing.T, n Node) Node {
	t.Helper()
	data, err := n.Encode()
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	return got
}

func TestLitRoundTrip(t *testing.T) {
	n := Node{Kind: KindLit, Outs: []types.Atom{types.I64}, Lit: types.I64Value(42)}
	got := roundTrip(t, n)
	require.Equal(t, n.Lit, got.Lit)
	require.Equal(t, n.Outs, got.Outs)
}

func TestArgRoundTrip(t *testing.T) {
	n := Node{Kind: KindArg, Outs: []types.Atom{types.I64}, ArgIndex: 3}
	got := roundTrip(t, n)
	require.Equal(t, uint32(3), got.ArgIndex)
}

func TestPrimRoundTrip(t *testing.T) {
	primCID := cid.Compute([]byte("add_i64"))
	lhs := cid.Compute([]byte("lhs"))
	rhs := cid.Compute([]byte("rhs"))
	n := Node{
		Kind:   KindPrim,
		Inputs: []Input{{Producer: lhs, Port: 0}, {Producer: rhs, Port: 0}},
		Outs:   []types.Atom{types.I64},
		Prim:   primCID,
	}
	got := roundTrip(t, n)
	require.Equal(t, primCID, got.Prim)
	require.Equal(t, n.Inputs, got.Inputs)
}

func TestLoadGlobalRoundTrip(t *testing.T) {
	globalCID := cid.Compute([]byte("counter/value"))
	n := Node{Kind: KindLoadGlobal, Outs: []types.Atom{types.I64}, Global: globalCID}
	got := roundTrip(t, n)
	require.Equal(t, globalCID, got.Global)
}

func TestIfRoundTrip(t *testing.T) {
	trueBranch := cid.Compute([]byte("true"))
	falseBranch := cid.Compute([]byte("false"))
	n := Node{Kind: KindIf, Outs: []types.Atom{types.I64}, IfTrue: trueBranch, IfFalse: falseBranch}
	got := roundTrip(t, n)
	require.Equal(t, trueBranch, got.IfTrue)
	require.Equal(t, falseBranch, got.IfFalse)
}

func TestReturnRoundTrip(t *testing.T) {
	v1 := cid.Compute([]byte("v1"))
	v2 := cid.Compute([]byte("v2"))
	n := Node{
		Kind: KindReturn,
		Return: ReturnPayload{
			Vals: []Input{{Producer: v1, Port: 0}},
			Deps: []Input{{Producer: v2, Port: 0}},
		},
	}
	got := roundTrip(t, n)
	require.Equal(t, n.Return, got.Return)
}

func TestReturnRejectsNonEmptyInputs(t *testing.T) {
	n := Node{Kind: KindReturn, Inputs: []Input{{Producer: cid.Compute([]byte("x")), Port: 0}}}
	_, err := n.Encode()
	require.ErrorIs(t, err, marcherr.ErrInvalidCanonicalForm)
}

func TestDispatchRoundTrip(t *testing.T) {
	guardA := cid.Compute([]byte("guardA"))
	candA := cid.Compute([]byte("candA"))
	guardB := cid.Compute([]byte("guardB"))
	candB := cid.Compute([]byte("candB"))
	fallback := cid.Compute([]byte("fallback"))

	cases := []DispatchCase{
		{GuardWord: guardA, Candidate: candA, CandidateParams: []types.Atom{types.I64}},
		{GuardWord: guardB, Candidate: candB, CandidateParams: []types.Atom{types.F64}},
	}
	// DISPATCH requires its guard CIDs sorted+deduped on encode.
	if guardA.String() > guardB.String() {
		cases[0], cases[1] = cases[1], cases[0]
	}

	n := Node{Kind: KindDispatch, Outs: []types.Atom{types.I64}, Dispatch: cases, DeoptTarget: &fallback}
	got := roundTrip(t, n)
	require.Len(t, got.Dispatch, 2)
	require.Equal(t, cases[0].Candidate, got.Dispatch[0].Candidate)
	require.Equal(t, cases[1].Candidate, got.Dispatch[1].Candidate)
	require.NotNil(t, got.DeoptTarget)
	require.Equal(t, fallback, *got.DeoptTarget)
}

func TestReservedKindsRejected(t *testing.T) {
	_, err := Node{Kind: KindPair}.Encode()
	require.ErrorIs(t, err, marcherr.ErrReservedNodeKind)

	_, err = Node{Kind: KindUnpair}.Encode()
	require.ErrorIs(t, err, marcherr.ErrReservedNodeKind)
}

func TestUnknownKindRejected(t *testing.T) {
	_, err := Node{Kind: Kind("BOGUS")}.Encode()
	require.ErrorIs(t, err, marcherr.ErrInvalidCanonicalForm)
}

func TestDuplicateInputPortRejected(t *testing.T) {
	producer := cid.Compute([]byte("p"))
	n := Node{
		Kind:   KindPrim,
		Inputs: []Input{{Producer: producer, Port: 0}, {Producer: producer, Port: 0}},
		Prim:   cid.Compute([]byte("prim")),
	}
	_, err := n.Encode()
	require.ErrorIs(t, err, marcherr.ErrInvalidCanonicalForm)
}

func TestEncodeIsDeterministic(t *testing.T) {
	n := Node{Kind: KindLit, Outs: []types.Atom{types.I64}, Lit: types.I64Value(7)}
	a, err := n.Encode()
	require.NoError(t, err)
	b, err := n.Encode()
	require.NoError(t, err)
	require.Equal(t, a, b)

	ca, _, err := n.Hash()
	require.NoError(t, err)
	cb, _, err := n.Hash()
	require.NoError(t, err)
	require.Equal(t, ca, cb)
}
