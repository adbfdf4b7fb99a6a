package main

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sxyafiq/seqgen"
	"github.com/sxyafiq/seqgen/sqlfunc"
)

const driverName = "sqlite3_seqgen"

// commandMinter forwards to the generator of the running command. The
// driver is registered once per process with this minter.
type commandMinter struct {
	gen atomic.Pointer[seqgen.Generator]
}

func (m *commandMinter) NextID() (int64, error) {
	return m.gen.Load().NextID()
}

var minter = &commandMinter{}

func openDB(root *rootOptions, cmd *cobra.Command, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("--db is required")
	}
	gen, err := root.generator(cmd)
	if err != nil {
		return nil, err
	}
	minter.gen.Store(gen)
	if err := sqlfunc.RegisterDriver(driverName, minter); err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// :memory: databases live per connection.
	db.SetMaxOpenConns(1)
	return db, nil
}

func newSQLCommand(root *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "sql <query>",
		Short: "Run SQL against a SQLite database with " + sqlfunc.FunctionName + "() available",
		Example: `  seqgen sql --db orders.db "SELECT generateUUID()"
  seqgen sql --db orders.db "INSERT INTO orders (id, name) VALUES (generateUUID(), 'x')"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(root, cmd, dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.QueryContext(cmd.Context(), args[0])
			if err != nil {
				return errors.Wrap(err, "query")
			}
			defer rows.Close()

			cols, err := rows.Columns()
			if err != nil {
				return errors.Wrap(err, "columns")
			}
			out := cmd.OutOrStdout()
			if len(cols) > 0 {
				fmt.Fprintln(out, strings.Join(cols, "\t"))
			}

			values := make([]sql.NullString, len(cols))
			ptrs := make([]interface{}, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			for rows.Next() {
				if err := rows.Scan(ptrs...); err != nil {
					return errors.Wrap(err, "scan")
				}
				fields := make([]string, len(values))
				for i, v := range values {
					if v.Valid {
						fields[i] = v.String
					} else {
						fields[i] = "NULL"
					}
				}
				fmt.Fprintln(out, strings.Join(fields, "\t"))
			}
			return errors.Wrap(rows.Err(), "rows")
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file or DSN")
	return cmd
}

func newBackfillCommand(root *rootOptions) *cobra.Command {
	var dbPath, table, column string

	cmd := &cobra.Command{
		Use:     "backfill",
		Short:   "Assign IDs to rows whose id column is NULL",
		Example: `  seqgen backfill --db orders.db --table orders --column id`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(root, cmd, dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := sqlfunc.Backfill(cmd.Context(), db, table, column)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backfilled %d rows in %s.%s\n", n, table, column)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file or DSN")
	cmd.Flags().StringVar(&table, "table", "", "table to backfill")
	cmd.Flags().StringVar(&column, "column", "id", "column to fill")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
