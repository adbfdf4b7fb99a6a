package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sxyafiq/seqgen"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestGenerate(t *testing.T) {
	out, err := run(t, "generate", "--node", "42", "--count", "3")
	require.NoError(t, err)

	ids := lines(out)
	require.Len(t, ids, 3)
	var prev seqgen.ID
	for i, s := range ids {
		id, err := seqgen.ParseString(s)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id.NodeID())
		if i > 0 {
			assert.True(t, prev.Before(id))
		}
		prev = id
	}
}

func TestGenerateFormats(t *testing.T) {
	out, err := run(t, "gen", "--node", "7", "-f", "base62")
	require.NoError(t, err)
	id, err := seqgen.ParseBase62(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.NodeID())

	_, err = run(t, "generate", "--format", "base64")
	assert.Error(t, err)

	_, err = run(t, "generate", "--count", "0")
	assert.Error(t, err)

	_, err = run(t, "generate", "--node", "1024")
	assert.Error(t, err)
}

func TestGenerateJSON(t *testing.T) {
	out, err := run(t, "generate", "--node", "9", "--count", "2", "--json")
	require.NoError(t, err)

	var body struct {
		Count  int   `json:"count"`
		NodeID int64 `json:"node_id"`
		IDs    []struct {
			ID       seqgen.ID `json:"id"`
			NodeID   int64     `json:"node_id"`
			Sequence int64     `json:"sequence"`
		} `json:"ids"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, int64(9), body.NodeID)
	require.Len(t, body.IDs, 2)
	assert.Equal(t, int64(9), body.IDs[0].NodeID)
	assert.Equal(t, body.IDs[0].ID.Sequence(), body.IDs[0].Sequence)
}

func TestParseEncodeValidate(t *testing.T) {
	id := seqgen.ID(((1760000000000 - seqgen.Epoch) << seqgen.TimestampShift) | (300 << seqgen.NodeIDShift) | 9)

	out, err := run(t, "parse", id.Base62())
	require.NoError(t, err)
	assert.Contains(t, out, "Node ID:    300")
	assert.Contains(t, out, "Sequence:   9")
	assert.Contains(t, out, "Decimal:    "+id.String())

	out, err = run(t, "encode", id.String(), "hex")
	require.NoError(t, err)
	assert.Equal(t, id.Hex(), strings.TrimSpace(out))

	_, err = run(t, "encode", id.String(), "base32")
	assert.Error(t, err)

	out, err = run(t, "validate", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, "VALID")

	out, err = run(t, "validate", "4096")
	assert.Error(t, err)
	assert.Contains(t, out, "INVALID")

	_, err = run(t, "parse", "not!an!id")
	assert.Error(t, err)

	out, err = run(t, "parse", "--from", "base58", id.Base58())
	require.NoError(t, err)
	assert.Contains(t, out, "Node ID:    300")
	assert.Contains(t, out, "Decimal:    "+id.String())

	out, err = run(t, "encode", "--from", "b58", id.Base58(), "decimal")
	require.NoError(t, err)
	assert.Equal(t, id.String(), strings.TrimSpace(out))

	_, err = run(t, "validate", "--from", "base58", id.Base58())
	require.NoError(t, err)

	_, err = run(t, "parse", "--from", "base64", id.String())
	assert.Error(t, err)
}

func TestMalformedNodeIDEnv(t *testing.T) {
	t.Setenv("SEQGEN_NODE_ID", "12a")
	_, err := run(t, "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEQGEN_NODE_ID")

	// An explicit flag still wins once the variable parses.
	t.Setenv("SEQGEN_NODE_ID", "12")
	out, err := run(t, "node", "--node", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Node ID:  8")
}

func TestNode(t *testing.T) {
	out, err := run(t, "node", "--node", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Node ID:  5")
	assert.Contains(t, out, "Origin:   pinned")

	t.Setenv("SEQGEN_NODE_HINT", "driver")
	out, err = run(t, "node", "--hash", "java")
	require.NoError(t, err)
	assert.Contains(t, out, "Node ID:  40")
	assert.Contains(t, out, "Origin:   hint")
	assert.Contains(t, out, "Hint:     driver")
}

func TestLayout(t *testing.T) {
	out, err := run(t, "layout")
	require.NoError(t, err)
	assert.Contains(t, out, "42 timestamp | 10 node | 12 sequence")
	assert.Contains(t, out, "2015-01-01T00:00:00Z")
	assert.Contains(t, out, "2084-09-06T15:47:35.552Z")
	assert.Contains(t, out, "4096 IDs/ms")
}

func TestSQLAndBackfill(t *testing.T) {
	db := filepath.Join(t.TempDir(), "orders.db")

	_, err := run(t, "sql", "--db", db, "CREATE TABLE orders (id INTEGER, name TEXT)")
	require.NoError(t, err)
	_, err = run(t, "sql", "--db", db, "INSERT INTO orders (name) VALUES ('a'), ('b'), ('c')")
	require.NoError(t, err)
	_, err = run(t, "sql", "--db", db, "--node", "11", "INSERT INTO orders (id, name) VALUES (generateUUID(), 'd')")
	require.NoError(t, err)

	out, err := run(t, "backfill", "--db", db, "--table", "orders", "--node", "12")
	require.NoError(t, err)
	assert.Contains(t, out, "backfilled 3 rows in orders.id")

	out, err = run(t, "sql", "--db", db, "SELECT name, id FROM orders ORDER BY name")
	require.NoError(t, err)
	rows := lines(out)
	require.Len(t, rows, 5)
	assert.Equal(t, "name\tid", rows[0])

	nodes := map[string]int64{"a": 12, "b": 12, "c": 12, "d": 11}
	for _, row := range rows[1:] {
		fields := strings.Split(row, "\t")
		require.Len(t, fields, 2)
		id, err := seqgen.ParseString(fields[1])
		require.NoError(t, err, row)
		assert.Equal(t, nodes[fields[0]], id.NodeID(), row)
	}

	_, err = run(t, "backfill", "--db", db, "--table", "orders; DROP TABLE orders")
	assert.Error(t, err)
	_, err = run(t, "sql", "SELECT 1")
	assert.Error(t, err, "--db is required")
}

func TestBench(t *testing.T) {
	out, err := run(t, "bench", "--node", "1", "--duration", "20ms", "--batch", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Single ID minting")
	assert.Contains(t, out, "2. Batch minting (batch size: 10)")
	assert.Contains(t, out, "base62:")
}
