package sqlfunc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sxyafiq/seqgen"
)

var driverSeq atomic.Int64

func openDB(t *testing.T, m Minter) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("sqlite3_seqgen_test_%d", driverSeq.Add(1))
	require.NoError(t, RegisterDriver(name, m))

	db, err := sql.Open(name, ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSelectGenerateUUID(t *testing.T) {
	gen, err := seqgen.NewWithNodeID(321)
	require.NoError(t, err)
	db := openDB(t, gen)

	var id int64
	require.NoError(t, db.QueryRow("SELECT generateUUID()").Scan(&id))
	_, node, _ := seqgen.Decompose(id)
	assert.Equal(t, int64(321), node)

	var withArg int64
	require.NoError(t, db.QueryRow("SELECT generateUUID(1)").Scan(&withArg))
	assert.Greater(t, uint64(withArg), uint64(id))

	var typ string
	require.NoError(t, db.QueryRow("SELECT typeof(generateUUID())").Scan(&typ))
	assert.Equal(t, "integer", typ)
}

func TestEvaluatedPerRow(t *testing.T) {
	gen, err := seqgen.NewWithNodeID(1)
	require.NoError(t, err)
	db := openDB(t, gen)

	rows, err := db.Query(`
		WITH RECURSIVE n(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM n WHERE x < 500)
		SELECT x, generateUUID(x) FROM n ORDER BY x`)
	require.NoError(t, err)
	defer rows.Close()

	var prev seqgen.ID
	seen := make(map[seqgen.ID]struct{})
	for rows.Next() {
		var x int
		var id seqgen.ID
		require.NoError(t, rows.Scan(&x, &id))
		if x > 1 {
			assert.True(t, prev.Before(id), "row %d: %d not after %d", x, id, prev)
		}
		seen[id] = struct{}{}
		prev = id
	}
	require.NoError(t, rows.Err())
	assert.Len(t, seen, 500)
}

func TestBackfill(t *testing.T) {
	gen, err := seqgen.NewWithNodeID(9)
	require.NoError(t, err)
	db := openDB(t, gen)
	ctx := context.Background()

	_, err = db.Exec("CREATE TABLE orders (id INTEGER, name TEXT)")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err = db.Exec("INSERT INTO orders (name) VALUES (?)", fmt.Sprintf("order-%d", i))
		require.NoError(t, err)
	}
	_, err = db.Exec("INSERT INTO orders (id, name) VALUES (7, 'kept')")
	require.NoError(t, err)

	n, err := Backfill(ctx, db, "orders", "id")
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	var distinct, nulls int
	require.NoError(t, db.QueryRow("SELECT COUNT(DISTINCT id), SUM(id IS NULL) FROM orders").Scan(&distinct, &nulls))
	assert.Equal(t, 101, distinct)
	assert.Equal(t, 0, nulls)

	var kept int64
	require.NoError(t, db.QueryRow("SELECT id FROM orders WHERE name = 'kept'").Scan(&kept))
	assert.Equal(t, int64(7), kept)

	n, err = Backfill(ctx, db, "orders", "id")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBackfillQuery(t *testing.T) {
	query, args, err := BackfillQuery("orders", "order_id")
	require.NoError(t, err)
	assert.Equal(t, "UPDATE orders SET order_id = generateUUID() WHERE order_id IS NULL", query)
	assert.Empty(t, args)

	for _, tc := range []struct{ table, column string }{
		{"orders; DROP TABLE x", "id"},
		{"orders", "id = 1 --"},
		{"", "id"},
		{"orders", "1id"},
	} {
		_, _, err := BackfillQuery(tc.table, tc.column)
		assert.Error(t, err, "%q.%q", tc.table, tc.column)
	}
}

type failingMinter struct{ err error }

func (m *failingMinter) NextID() (int64, error) { return 0, m.err }

func TestMinterErrorSurfacesAsSQLError(t *testing.T) {
	db := openDB(t, &failingMinter{err: errors.New("clock moved backwards")})

	var id int64
	err := db.QueryRow("SELECT generateUUID()").Scan(&id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clock moved backwards")
}

func TestRegisterDriverIdempotent(t *testing.T) {
	gen, err := seqgen.NewWithNodeID(2)
	require.NoError(t, err)
	other, err := seqgen.NewWithNodeID(3)
	require.NoError(t, err)

	const name = "sqlite3_seqgen_idempotent"
	require.NoError(t, RegisterDriver(name, gen))
	require.NoError(t, RegisterDriver(name, gen))
	assert.Error(t, RegisterDriver(name, other))

	assert.Error(t, RegisterDriver("sqlite3", gen), "name owned by go-sqlite3")
	assert.Error(t, RegisterDriver("sqlite3_seqgen_nil", nil))
}
