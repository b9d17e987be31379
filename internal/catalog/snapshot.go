package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/marchdb/march/internal/global"
	"github.com/marchdb/march/internal/marcherr"
)

// importSnapshot handles a !snapshot entry: `{ key: tagged_value, ... }`.
// Distilled spec §6 says a catalog snapshot "writes into the global
// store" directly; original_source/src/cli/commands/catalog.rs instead
// persisted a standalone named GlobalStoreSnapshot object (tag `gstate`)
// without touching the live store. This importer does both: it applies
// every entry to the live global store under the catalog entry's own
// namespace/key pair, then also records a `gstate`-scoped name pointing
// at a serialized internal/global.Snapshot capturing just this entry,
// so both the live-store write and the original's named-object idea
// survive.
func (im *Importer) importSnapshot(ns, sym string, n *yaml.Node, report *Report) error {
	full := fullName(ns, sym)
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: snapshot %q must be a mapping", marcherr.ErrInvalidCanonicalForm, full)
	}

	var entries []global.Entry
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		val, err := decodeValue(n.Content[i+1])
		if err != nil {
			return fmt.Errorf("snapshot %q key %q: %w", full, key, err)
		}
		im.globals.Write(ns, key, val)
		entries = append(entries, global.Entry{Key: key, Value: val})
	}

	snap := global.Snapshot{Namespaces: []global.NamespaceSnapshot{{Namespace: ns, Entries: entries}}}
	data, err := global.Encode(snap)
	if err != nil {
		return err
	}
	c, _, err := im.st.Put("gstate", data)
	if err != nil {
		return err
	}
	if err := im.nameAndBare("gstate", ns, sym, c); err != nil {
		return err
	}
	report.add("applied snapshot %q (%d key(s)), recorded as %s", full, len(entries), c)
	return nil
}
