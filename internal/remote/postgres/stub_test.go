package postgres

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// stubDB emulates the user_documents table so store tests run without a
// live server.
type stubDB struct {
	mu       sync.Mutex
	rows     map[string]stubRow
	failPing bool
	failExec bool
}

type stubRow struct {
	payload     []byte
	lastUpdated time.Time
}

func newStubDB() *stubDB {
	return &stubDB{rows: make(map[string]stubRow)}
}

// Connect implements driver.Connector.
func (s *stubDB) Connect(context.Context) (driver.Conn, error) { return &stubConn{db: s}, nil }

// Driver implements driver.Connector.
func (s *stubDB) Driver() driver.Driver { return nil }

type stubConn struct {
	db *stubDB
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

// Ping implements driver.Pinger.
func (c *stubConn) Ping(context.Context) error {
	if c.db.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.db.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO USER_DOCUMENTS"):
		userID := args[0].Value.(string)
		c.db.rows[userID] = stubRow{
			payload:     append([]byte(nil), args[1].Value.([]byte)...),
			lastUpdated: args[2].Value.(time.Time),
		}
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "UPDATE USER_DOCUMENTS"):
		userID := args[0].Value.(string)
		expect := args[3].Value.(time.Time)
		row, ok := c.db.rows[userID]
		if !ok || !row.lastUpdated.Equal(expect) {
			return driver.RowsAffected(0), nil
		}
		c.db.rows[userID] = stubRow{
			payload:     append([]byte(nil), args[1].Value.([]byte)...),
			lastUpdated: args[2].Value.(time.Time),
		}
		return driver.RowsAffected(1), nil
	default:
		return nil, fmt.Errorf("unexpected statement: %s", query)
	}
}

// QueryContext implements driver.QueryerContext.
func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT PAYLOAD FROM USER_DOCUMENTS") {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	userID := args[0].Value.(string)
	var values [][]driver.Value
	if row, ok := c.db.rows[userID]; ok {
		values = append(values, []driver.Value{append([]byte(nil), row.payload...)})
	}
	return &stubRows{cols: []string{"payload"}, rows: values}, nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
