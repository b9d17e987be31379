package object

import (
	"fmt"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// Effect identifies an effect domain descriptor. Its optional human
// documentation string lives outside the canonical payload (the store
// keeps it in its effect_doc sidecar table) so that adding or
// editing documentation never changes the effect's CID.
type Effect struct {
	Domain types.Domain
	Symbol string
	Doc    string // not hashed
}

type effectCanon struct {
	_      struct{} `cbor:",toarray"`
	Tag    uint8
	Domain string
	Symbol string
}

// effectTagDomain is a fixed marker distinguishing effect objects from
// the seven numbered kinds in canon.Tag; effects are addressed by
// (domain, symbol) rather than occupying a slot in the Prim/Word/...
// positional tag space, since spec §3 defines them only as "a CID
// identifying an effect domain descriptor" without assigning them one
// of the encoder's seven tags.
const effectTagDomain uint8 = 0xEE

// Encode serializes e's hashed payload (domain + symbol only; doc is
// excluded).
func (e Effect) Encode() ([]byte, error) {
	c := effectCanon{
		Tag:    effectTagDomain,
		Domain: string(e.Domain),
		Symbol: e.Symbol,
	}
	return canon.Marshal(c)
}

// Hash encodes and hashes e.
func (e Effect) Hash() (cid.CID, []byte, error) {
	data, err := e.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

// DecodeEffect parses the hashed payload back into an Effect (without
// Doc, which callers must fetch separately with store.EffectDoc).
func DecodeEffect(data []byte) (Effect, error) {
	var c effectCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Effect{}, fmt.Errorf("%w: effect: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != effectTagDomain {
		return Effect{}, fmt.Errorf("%w: effect tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	return Effect{Domain: types.Domain(c.Domain), Symbol: c.Symbol}, nil
}
