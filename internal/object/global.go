package object

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// Global is a canonical object carrying a scalar or small tuple value.
// Large blobs are referenced by a blob CID, which is out of core scope.
type Global struct {
	TypeList []types.Atom
	Value    types.Value
}

type globalCanon struct {
	_        struct{} `cbor:",toarray"`
	Tag      uint8
	TypeList []string
	ValueRaw cbor.RawMessage
}

// Encode serializes g into its canonical [2, typeList, valueList] form.
func (g Global) Encode() ([]byte, error) {
	raw, err := canon.EncodeValue(g.Value)
	if err != nil {
		return nil, err
	}
	c := globalCanon{
		Tag:      uint8(canon.TagGlobal),
		TypeList: types.AtomsToStrings(g.TypeList),
		ValueRaw: raw,
	}
	return canon.Marshal(c)
}

// Hash encodes and hashes g.
func (g Global) Hash() (cid.CID, []byte, error) {
	data, err := g.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

// DecodeGlobal parses canonical bytes back into a Global.
func DecodeGlobal(data []byte) (Global, error) {
	var c globalCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Global{}, fmt.Errorf("%w: global: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != uint8(canon.TagGlobal) {
		return Global{}, fmt.Errorf("%w: global tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	typeList, err := types.StringsToAtoms(c.TypeList)
	if err != nil {
		return Global{}, err
	}
	atom := types.Unit
	if len(typeList) == 1 {
		atom = typeList[0]
	} else if len(typeList) > 1 {
		atom = types.Tuple
	}
	v, err := canon.DecodeValue(atom, c.ValueRaw)
	if err != nil {
		return Global{}, err
	}
	return Global{TypeList: typeList, Value: v}, nil
}
