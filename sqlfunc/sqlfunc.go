// Package sqlfunc exposes an ID generator to SQL as a scalar function, so
// that queries can mint IDs inline:
//
//	SELECT generateUUID(), name FROM customers
//	UPDATE orders SET id = generateUUID() WHERE id IS NULL
//
// The function is registered non-deterministic so the engine evaluates it
// once per row instead of folding it into a constant. A single-argument
// form is also registered for callers that pass a column to defeat
// common-subexpression elimination; the argument is ignored.
package sqlfunc

import (
	"context"
	"database/sql"
	"regexp"
	"sync"

	sq "github.com/Masterminds/squirrel"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// FunctionName is the SQL name the generator is registered under.
const FunctionName = "generateUUID"

// Minter mints IDs. *seqgen.Generator satisfies it.
type Minter interface {
	NextID() (int64, error)
}

// Register installs the function on conn under name.
func Register(conn *sqlite3.SQLiteConn, name string, m Minter) error {
	if m == nil {
		return errors.New("sqlfunc: nil minter")
	}
	if err := conn.RegisterFunc(name, m.NextID, false); err != nil {
		return errors.Wrapf(err, "register %s()", name)
	}
	withArg := func(interface{}) (int64, error) {
		return m.NextID()
	}
	if err := conn.RegisterFunc(name, withArg, false); err != nil {
		return errors.Wrapf(err, "register %s(x)", name)
	}
	return nil
}

var (
	driversMu sync.Mutex
	drivers   = make(map[string]Minter)
)

// RegisterDriver registers a database/sql driver named driverName that
// behaves like "sqlite3" with FunctionName installed on every connection.
//
// Registering the same name with the same minter again is a no-op.
// Registering it with a different minter, or reusing a name some other
// package registered, is an error.
func RegisterDriver(driverName string, m Minter) error {
	if m == nil {
		return errors.New("sqlfunc: nil minter")
	}

	driversMu.Lock()
	defer driversMu.Unlock()

	if existing, ok := drivers[driverName]; ok {
		if existing == m {
			return nil
		}
		return errors.Errorf("sqlfunc: driver %q already registered with another minter", driverName)
	}
	for _, name := range sql.Drivers() {
		if name == driverName {
			return errors.Errorf("sqlfunc: driver name %q is taken", driverName)
		}
	}

	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return Register(conn, FunctionName, m)
		},
	})
	drivers[driverName] = m
	return nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BackfillQuery returns the statement Backfill runs.
func BackfillQuery(table, column string) (string, []interface{}, error) {
	if !identifier.MatchString(table) {
		return "", nil, errors.Errorf("sqlfunc: invalid table name %q", table)
	}
	if !identifier.MatchString(column) {
		return "", nil, errors.Errorf("sqlfunc: invalid column name %q", column)
	}

	return sq.Update(table).
		Set(column, sq.Expr(FunctionName+"()")).
		Where(sq.Eq{column: nil}).
		ToSql()
}

// Backfill assigns a fresh ID to every row of table whose column is NULL and
// returns the number of rows updated. db must have been opened with a driver
// from RegisterDriver.
func Backfill(ctx context.Context, db *sql.DB, table, column string) (int64, error) {
	query, args, err := BackfillQuery(table, column)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "backfill %s.%s", table, column)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}
