// Package tokenpool implements the token-handle model used by the graph
// builder at compile time (the graph interpreter does not use a pool):
// a map keyed by (domain, permission, transaction id) from which
// write handles are removed during a consuming operation and reinserted
// with the node's output, enforcing write linearity by construction.
package tokenpool

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// TID is a transaction id scoping a linear write token. Read tokens
// share a fixed TID ("") since they are duplicable and domain-scoped
// only.
type TID string

// NewTID mints a fresh, UUID-based transaction id. The Pool methods
// below always use the empty TID; nothing in this module calls NewTID.
func NewTID() TID {
	return TID(uuid.NewString())
}

// Key identifies a slot in the pool.
type Key struct {
	Domain types.Domain
	Perm   types.Perm
	TID    TID
}

// Handle is a token instance. Exactly one of the three constructors
// below is used to build a Handle; Kind distinguishes them.
type Handle struct {
	Kind HandleKind
	Node cid.CID // the node producing/representing this token
	TID  TID     // populated for Write handles
}

// HandleKind distinguishes the three token shapes from spec §4.3.
type HandleKind int

const (
	Single HandleKind = iota // baseline linear token (e.g. the seeded entry token)
	Read                     // R(node_cid): duplicable
	Write                    // W(node_cid, tid): linear
)

func SingleHandle(n cid.CID) Handle       { return Handle{Kind: Single, Node: n} }
func ReadHandle(n cid.CID) Handle         { return Handle{Kind: Read, Node: n} }
func WriteHandle(n cid.CID, t TID) Handle { return Handle{Kind: Write, Node: n, TID: t} }

// Pool is the map (domain, perm, tid) -> handle, used by the builder
// (compile time, nodes are graph CIDs not yet evaluated).
type Pool struct {
	slots map[Key]Handle
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{slots: make(map[Key]Handle)}
}

// Seed installs a synthetic TOKEN handle for a declared domain at the
// start of a word body (spec §4.3 "Initial token state"). Seeds are
// installed under both permissions so the first read or write within
// the domain has something to acquire.
func (p *Pool) Seed(domain types.Domain, tokenNode cid.CID) {
	p.slots[Key{Domain: domain, Perm: types.PermRead, TID: ""}] = ReadHandle(tokenNode)
	p.slots[Key{Domain: domain, Perm: types.PermWrite, TID: ""}] = WriteHandle(tokenNode, "")
}

// Acquire looks up a token of the given domain/permission. Reads are
// duplicable: the handle is returned without being removed. Writes are
// linear: the handle is removed from the pool; the caller must call
// Release with the node's output to reinsert it under the same key.
//
// An absent token is always ErrMissingToken; for an optional domain
// (test, metric) the message says so, and the caller decides whether to
// treat that miss as "erase to a pure replacement" or propagate the error.
func (p *Pool) Acquire(domain types.Domain, perm types.Perm) (Handle, error) {
	key := Key{Domain: domain, Perm: perm, TID: ""}
	h, ok := p.slots[key]
	if !ok {
		if types.OptionalDomains[domain] {
			return Handle{}, fmt.Errorf("%w: optional domain %s", marcherr.ErrMissingToken, domain)
		}
		return Handle{}, fmt.Errorf("%w: domain %s", marcherr.ErrMissingToken, domain)
	}
	if perm == types.PermWrite {
		delete(p.slots, key)
	}
	return h, nil
}

// Release reinserts a write token under the given domain, produced by
// the node that just consumed the prior write handle. Read tokens never
// need releasing since Acquire never removed them.
func (p *Pool) Release(domain types.Domain, producer cid.CID) {
	key := Key{Domain: domain, Perm: types.PermWrite, TID: ""}
	p.slots[key] = WriteHandle(producer, "")
	// A fresh write also becomes the newest readable value in the domain.
	p.slots[Key{Domain: domain, Perm: types.PermRead, TID: ""}] = ReadHandle(producer)
}

// Frontier returns the current newest-producer handle for a domain, if
// any, used by the builder to populate RETURN's deps list.
func (p *Pool) Frontier(domain types.Domain) (cid.CID, bool) {
	h, ok := p.slots[Key{Domain: domain, Perm: types.PermRead, TID: ""}]
	if !ok {
		return cid.CID{}, false
	}
	return h.Node, true
}

// Domains returns the set of domains currently seeded in the pool, sorted.
func (p *Pool) Domains() []types.Domain {
	seen := map[types.Domain]bool{}
	for k := range p.slots {
		seen[k.Domain] = true
	}
	return types.SortDomains(seen)
}
