// Package testutil provides a stub database/sql driver that understands the
// handful of statements the protocol store issues: CREATE TABLE, upserts,
// keyed deletes and full-table selects.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Int64

// StubConn keeps tables as lists of column maps.
type StubConn struct {
	// DDL holds schema statements, Execs every other statement, in order.
	DDL        []string
	Execs      []string
	Tables     map[string][]map[string]any
	FailPing   bool
	FailExec   bool
	FailTables map[string]bool
	RowsErr    error
	// ExecHook runs before every non-DDL statement; an error fails it.
	ExecHook   func(query string) error
}

// NewStubDB registers a fresh stub driver and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("protocoldesk-stub-%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

var errNoTx = errors.New("stub: transactions not supported")

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("stub: prepare not supported") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) { return nil, errNoTx }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stub: ping refused")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	verb := leadingVerb(query)
	if verb == "CREATE" {
		c.DDL = append(c.DDL, query)
		if c.FailExec {
			return nil, errors.New("stub: ddl refused")
		}
		return driver.RowsAffected(0), nil
	}
	c.Execs = append(c.Execs, query)
	if c.ExecHook != nil {
		if err := c.ExecHook(query); err != nil {
			return nil, err
		}
	}
	if c.FailExec {
		return nil, errors.New("stub: exec refused")
	}
	switch verb {
	case "INSERT":
		return c.insert(query, args)
	case "DELETE":
		return c.delete(query, args)
	default:
		return nil, fmt.Errorf("stub: unsupported statement %q", verb)
	}
}

func (c *StubConn) insert(query string, args []driver.NamedValue) (driver.Result, error) {
	table, cols, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: write to %s refused", table)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("stub: %d columns but %d args for %s", len(cols), len(args), table)
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	key, action := parseConflict(query)
	if key != "" {
		for i, existing := range c.Tables[table] {
			if existing[key] != row[key] {
				continue
			}
			if action == "NOTHING" {
				return driver.RowsAffected(0), nil
			}
			c.Tables[table][i] = row
			return driver.RowsAffected(1), nil
		}
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

func (c *StubConn) delete(query string, args []driver.NamedValue) (driver.Result, error) {
	table, col, err := parseDelete(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: write to %s refused", table)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("stub: delete from %s expects one arg", table)
	}
	kept := c.Tables[table][:0]
	var removed int64
	for _, row := range c.Tables[table] {
		if row[col] == args[0].Value {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	c.Tables[table] = kept
	return driver.RowsAffected(removed), nil
}

// QueryContext implements driver.QueryerContext. WHERE clauses are ignored.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	table, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: read of %s refused", table)
	}
	values := make([][]driver.Value, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values, err: c.RowsErr}, nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func leadingVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

var (
	insertRe   = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+(\w+)\s*\(([^)]*)\)`)
	conflictRe = regexp.MustCompile(`(?is)ON\s+CONFLICT\s*\(\s*(\w+)\s*\)\s*DO\s+(NOTHING|UPDATE)`)
	deleteRe   = regexp.MustCompile(`(?is)^\s*DELETE\s+FROM\s+(\w+)\s+WHERE\s+(\w+)\s*=`)
	selectRe   = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+FROM\s+(\w+)`)
)

func parseInsert(query string) (string, []string, error) {
	m := insertRe.FindStringSubmatch(query)
	if m == nil {
		return "", nil, fmt.Errorf("stub: cannot parse insert: %s", query)
	}
	return strings.ToLower(m[1]), splitColumns(m[2]), nil
}

// parseConflict returns the conflict column and NOTHING or UPDATE, or empty
// strings for a plain insert.
func parseConflict(query string) (string, string) {
	m := conflictRe.FindStringSubmatch(query)
	if m == nil {
		return "", ""
	}
	return strings.ToLower(m[1]), strings.ToUpper(m[2])
}

func parseDelete(query string) (string, string, error) {
	m := deleteRe.FindStringSubmatch(query)
	if m == nil {
		return "", "", fmt.Errorf("stub: cannot parse delete: %s", query)
	}
	return strings.ToLower(m[1]), strings.ToLower(m[2]), nil
}

func parseSelect(query string) (string, []string, error) {
	m := selectRe.FindStringSubmatch(query)
	if m == nil {
		return "", nil, fmt.Errorf("stub: cannot parse select: %s", query)
	}
	return strings.ToLower(m[2]), splitColumns(m[1]), nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
