package catalog

import (
	"gopkg.in/yaml.v3"

	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/types"
)

// importPrim stores a !prim entry. Its `emask` field (a list of domain
// names requiring a write token) is kept only in the importer's
// in-memory mask table, per types.EffectMask's non-canonical design —
// it never reaches the encoded Prim payload.
func (im *Importer) importPrim(ns, sym string, n *yaml.Node, report *Report) error {
	full := fullName(ns, sym)
	params, err := typeListField(n, "params")
	if err != nil {
		return err
	}
	results, err := typeListField(n, "results")
	if err != nil {
		return err
	}
	effects, err := hexCIDListField(n, "effects")
	if err != nil {
		return err
	}
	emaskNames, err := stringListField(n, "emask")
	if err != nil {
		return err
	}

	var mask types.EffectMask
	for _, name := range emaskNames {
		mask = mask.SetWrite(types.Domain(name))
	}

	p := object.Prim{Params: params, Results: results, Effects: effects}
	data, err := p.Encode()
	if err != nil {
		return err
	}
	c, _, err := im.st.Put("prim", data)
	if err != nil {
		return err
	}
	if err := im.nameAndBare("prim", ns, sym, c); err != nil {
		return err
	}
	im.masks[full] = mask
	report.add("stored prim %q with cid %s", full, c)
	return nil
}

// resolveMask returns the effect mask recorded for a prim under its
// fully-qualified catalog name, defaulting to MaskNone for prims
// imported outside this pass (or never given an emask). A bare name
// finds no recorded mask and also yields MaskNone.
func (im *Importer) resolveMask(name string) types.EffectMask {
	return im.masks[name]
}
