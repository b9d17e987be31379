package object

import (
	"fmt"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// Word is a callable entry: root node CID (must be a RETURN), parameter
// type list, result type list, effect CID list. A word's CID depends
// only on its graph and signature; its display name lives in the name
// index.
type Word struct {
	Root    cid.CID
	Params  []types.Atom
	Results []types.Atom
	Effects []cid.CID
}

// IsGuardShape reports whether w has the shape required of a guard: a
// single i64 result and no declared effects (spec §3 Guard).
func (w Word) IsGuardShape() bool {
	return len(w.Results) == 1 && w.Results[0] == types.I64 && len(w.Effects) == 0
}

type wordCanon struct {
	_       struct{} `cbor:",toarray"`
	Tag     uint8
	Root    []byte
	Params  []string
	Results []string
	Effects [][]byte
}

// Encode serializes w into its canonical [1, root, params, results, effects] form.
func (w Word) Encode() ([]byte, error) {
	if err := canon.CIDList(w.Effects).RequireSortedUnique("word.effects"); err != nil {
		return nil, err
	}
	c := wordCanon{
		Tag:     uint8(canon.TagWord),
		Root:    w.Root.Bytes(),
		Params:  types.AtomsToStrings(w.Params),
		Results: types.AtomsToStrings(w.Results),
		Effects: cidsToBytes(w.Effects),
	}
	return canon.Marshal(c)
}

// Hash encodes and hashes w.
func (w Word) Hash() (cid.CID, []byte, error) {
	data, err := w.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

// DecodeWord parses canonical bytes back into a Word.
func DecodeWord(data []byte) (Word, error) {
	var c wordCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Word{}, fmt.Errorf("%w: word: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != uint8(canon.TagWord) {
		return Word{}, fmt.Errorf("%w: word tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	root, err := cid.FromSlice(c.Root)
	if err != nil {
		return Word{}, fmt.Errorf("%w: word root: %v", marcherr.ErrCorruptObject, err)
	}
	params, err := types.StringsToAtoms(c.Params)
	if err != nil {
		return Word{}, err
	}
	results, err := types.StringsToAtoms(c.Results)
	if err != nil {
		return Word{}, err
	}
	effects, err := bytesToCIDs(c.Effects)
	if err != nil {
		return Word{}, err
	}
	return Word{Root: root, Params: params, Results: results, Effects: effects}, nil
}
