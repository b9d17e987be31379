package object

import (
	"fmt"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
)

// Agent and Rule are minimal canonical objects for the Mini
// Interaction-Net ABI's agent/rule catalog entries (grounded in
// original_source/src/inet.rs's AgentCanon/RuleCanon). They are
// addressable through the name index's "agent"/"rule" scopes and
// round-trip through the store, but the rewrite engine that consumes
// them (agent/rule reduction, the wire DSL) is not wired into the
// builder or interpreter — see DESIGN.md.

// Agent names a net agent kind and its port arity.
type Agent struct {
	Name  string
	Ports []string
	Doc   string // not hashed
}

type agentCanon struct {
	_     struct{} `cbor:",toarray"`
	Tag   uint8
	Name  string
	Ports []string
}

const agentTag uint8 = 0xA6 // distinct marker outside the seven numbered kinds

func (a Agent) Encode() ([]byte, error) {
	return canon.Marshal(agentCanon{Tag: agentTag, Name: a.Name, Ports: a.Ports})
}

func (a Agent) Hash() (cid.CID, []byte, error) {
	data, err := a.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

func DecodeAgent(data []byte) (Agent, error) {
	var c agentCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Agent{}, fmt.Errorf("%w: agent: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != agentTag {
		return Agent{}, fmt.Errorf("%w: agent tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	return Agent{Name: c.Name, Ports: c.Ports}, nil
}

// Rule names a two-agent active-pair reduction and the rewire-DSL body
// that implements it, stored opaquely (the DSL is never interpreted by
// this core).
type Rule struct {
	LHSKindA   string
	LHSKindB   string
	BodySyntax string
	Doc        string // not hashed
}

type ruleCanon struct {
	_          struct{} `cbor:",toarray"`
	Tag        uint8
	LHSKindA   string
	LHSKindB   string
	BodySyntax string
}

const ruleTag uint8 = 0xA7

func (r Rule) Encode() ([]byte, error) {
	return canon.Marshal(ruleCanon{Tag: ruleTag, LHSKindA: r.LHSKindA, LHSKindB: r.LHSKindB, BodySyntax: r.BodySyntax})
}

func (r Rule) Hash() (cid.CID, []byte, error) {
	data, err := r.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

func DecodeRule(data []byte) (Rule, error) {
	var c ruleCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Rule{}, fmt.Errorf("%w: rule: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != ruleTag {
		return Rule{}, fmt.Errorf("%w: rule tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	return Rule{LHSKindA: c.LHSKindA, LHSKindB: c.LHSKindB, BodySyntax: c.BodySyntax}, nil
}
