package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	require.NoError(t, cmd.Execute(), buf.String())
	return buf.String()
}

func TestCLIEndToEndArithmeticWord(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	run(t, dbPath, "new")
	run(t, dbPath, "prim", "add", "add_i64", "--params", "i64,i64", "--results", "i64")

	wordFile := filepath.Join(t.TempDir(), "word.yaml")
	require.NoError(t, writeFile(wordFile, `
core:
  add_const: !word
    params: [i64]
    results: [i64]
    stack:
      - {op: arg, index: 0, type: i64}
      - {op: lit, value: !i64 5}
      - {op: prim, name: add_i64}
`))
	run(t, dbPath, "word", "add", wordFile)

	out := run(t, dbPath, "run", "core/add_const", "10")
	require.Equal(t, "15", strings.TrimSpace(out))
}

func TestCLIStateRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	run(t, dbPath, "new")

	catalogFile := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, writeFile(catalogFile, `
core:
  state.write_i64: !prim
    params: [text, text, i64]
    results: [unit]
    emask: [state]
  state.read_i64: !prim
    params: [text, text]
    results: [i64]
counter:
  set_counter: !word
    params: [i64]
    results: [unit]
    stack:
      - {op: lit, value: !text "counter"}
      - {op: lit, value: !text "value"}
      - {op: arg, index: 0, type: i64}
      - {op: prim, name: "core/state.write_i64"}
  get_counter: !word
    params: []
    results: [i64]
    stack:
      - {op: lit, value: !text "counter"}
      - {op: lit, value: !text "value"}
      - {op: prim, name: "core/state.read_i64"}
`))
	run(t, dbPath, "catalog", catalogFile)
	run(t, dbPath, "run", "counter/set_counter", "7")
	out := run(t, dbPath, "run", "counter/get_counter")
	require.Equal(t, "7", strings.TrimSpace(out))

	snap := run(t, dbPath, "state", "snapshot")
	require.Contains(t, snap, "counter/value = 7")
}

func TestCLIGlobalAddAndLoadGlobal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	run(t, dbPath, "new")

	run(t, dbPath, "global", "add", "counter.seed", "--type", "i64", "--value", "5")

	wordFile := filepath.Join(t.TempDir(), "word.yaml")
	require.NoError(t, writeFile(wordFile, `
core:
  read_seed: !word
    params: []
    results: [i64]
    stack:
      - {op: load_global, name: "counter.seed", type: i64}
`))
	run(t, dbPath, "word", "add", wordFile)

	out := run(t, dbPath, "run", "core/read_seed")
	require.Equal(t, "5", strings.TrimSpace(out))
}

func TestCLIEffectIfaceNamespaceGuard(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	run(t, dbPath, "new")

	run(t, dbPath, "effect", "add", "state", "--domain", "state", "--doc", "state access")

	wordFile := filepath.Join(t.TempDir(), "word.yaml")
	require.NoError(t, writeFile(wordFile, `
core:
  identity: !word
    params: [i64]
    results: [i64]
    stack:
      - {op: arg, index: 0, type: i64}
  is_positive: !word
    params: [i64]
    results: [i64]
    stack:
      - {op: arg, index: 0, type: i64}
`))
	run(t, dbPath, "word", "add", wordFile)

	run(t, dbPath, "iface", "add", "core.iface", "--entry", "identity=core/identity")

	run(t, dbPath, "namespace", "add", "core.ns", "--export", "identity=core/identity")

	guardFile := filepath.Join(t.TempDir(), "guard.yaml")
	require.NoError(t, writeFile(guardFile, `
core:
  positive: !guard
    params: [i64]
    results: [i64]
    stack:
      - {op: arg, index: 0, type: i64}
`))
	run(t, dbPath, "guard", "add", guardFile)

	list := run(t, dbPath, "guard", "list")
	require.Contains(t, list, "core/positive")

	show := run(t, dbPath, "guard", "show", "core/positive")
	require.Contains(t, show, "core/positive")
}

func TestCLIStateReset(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	run(t, dbPath, "new")
	run(t, dbPath, "global", "add", "unused", "--type", "i64", "--value", "1")

	out := run(t, dbPath, "state", "reset")
	require.Contains(t, out, "reset")

	snap := run(t, dbPath, "state", "snapshot")
	require.Empty(t, strings.TrimSpace(snap))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
