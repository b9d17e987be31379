// Package object implements canonical encode/decode and store persistence
// for the non-node object kinds: primitives, words, interfaces,
// namespaces, programs, globals, and effects.
package object

import (
	"fmt"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// Prim is an operator descriptor: parameter type list, result type
// list, declared effect CID list (sorted). Its CID deduplicates
// regardless of human name; the root slot is reserved (always the zero
// CID) to keep the positional shape uniform with Word.
type Prim struct {
	Params  []types.Atom
	Results []types.Atom
	Effects []cid.CID // must already be sorted+deduped

	// Mask is non-canonical builder metadata (not part of Encode/Hash):
	// which declared domains this primitive touches with a write vs. a
	// read token. See types.EffectMask.
	Mask types.EffectMask
}

// primCanon is the positional wire form: [0, zero-CID, params, results, effects].
type primCanon struct {
	_       struct{} `cbor:",toarray"`
	Tag     uint8
	Root    []byte
	Params  []string
	Results []string
	Effects [][]byte
}

// Encode serializes p into its canonical byte sequence.
func (p Prim) Encode() ([]byte, error) {
	if err := canon.CIDList(p.Effects).RequireSortedUnique("prim.effects"); err != nil {
		return nil, err
	}
	c := primCanon{
		Tag:     uint8(canon.TagPrim),
		Root:    cid.Zero.Bytes(),
		Params:  types.AtomsToStrings(p.Params),
		Results: types.AtomsToStrings(p.Results),
		Effects: cidsToBytes(p.Effects),
	}
	return canon.Marshal(c)
}

// Hash encodes and hashes p.
func (p Prim) Hash() (cid.CID, []byte, error) {
	data, err := p.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

// DecodePrim parses canonical bytes back into a Prim.
func DecodePrim(data []byte) (Prim, error) {
	var c primCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Prim{}, fmt.Errorf("%w: prim: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != uint8(canon.TagPrim) {
		return Prim{}, fmt.Errorf("%w: prim tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	params, err := types.StringsToAtoms(c.Params)
	if err != nil {
		return Prim{}, err
	}
	results, err := types.StringsToAtoms(c.Results)
	if err != nil {
		return Prim{}, err
	}
	effects, err := bytesToCIDs(c.Effects)
	if err != nil {
		return Prim{}, err
	}
	return Prim{Params: params, Results: results, Effects: effects}, nil
}

func cidsToBytes(cids []cid.CID) [][]byte {
	out := make([][]byte, len(cids))
	for i, c := range cids {
		out[i] = c.Bytes()
	}
	return out
}

func bytesToCIDs(raw [][]byte) ([]cid.CID, error) {
	out := make([]cid.CID, len(raw))
	for i, b := range raw {
		c, err := cid.FromSlice(b)
		if err != nil {
			return nil, fmt.Errorf("%w: effect entry %d: %v", marcherr.ErrCorruptObject, i, err)
		}
		out[i] = c
	}
	return out, nil
}
