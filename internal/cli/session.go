package cli

import (
	"github.com/marchdb/march/internal/global"
	"github.com/marchdb/march/internal/store"
)

// gstateCurrent is the reserved name_index entry under scope "gstate"
// that holds the live global store's snapshot between CLI invocations.
// The core global store (internal/global.Store) is process-memory only;
// a short-lived CLI process persists it here so `run`, `catalog`, and
// `state reset` commands compose across separate invocations the way a
// long-running embedder would see them compose within one process.
const gstateCurrent = "__current__"

// openSession opens the object store at path and reconstructs the
// global store from its last persisted snapshot, if any.
func openSession(path string) (*store.Store, *global.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	g := global.New()
	c, ok, err := st.NameGet("gstate", gstateCurrent)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	if ok {
		data, err := st.GetKind(c, "gstate")
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		snap, err := global.Decode(data)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		g.Restore(snap)
	}
	return st, g, nil
}

// saveSession persists the global store's current snapshot back to its
// reserved name_index entry.
func saveSession(st *store.Store, g *global.Store) error {
	data, err := global.Encode(g.Snapshot())
	if err != nil {
		return err
	}
	c, _, err := st.Put("gstate", data)
	if err != nil {
		return err
	}
	return st.NamePut("gstate", gstateCurrent, c)
}
