package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
)

// execRecorder captures every statement the store executes and can fail a
// chosen attempt, standing in for a Postgres that dies mid-run.
type execRecorder struct {
	mu       sync.Mutex
	attempts int
	rowsSeen []int
	failOn   int
}

func (r *execRecorder) reset(failOn int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = 0
	r.rowsSeen = nil
	r.failOn = failOn
}

func (r *execRecorder) exec(args []driver.NamedValue) (driver.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts++
	if r.failOn > 0 && r.attempts == r.failOn {
		return nil, errors.New("connection reset by peer")
	}

	r.rowsSeen = append(r.rowsSeen, len(args)/upsertColumns)
	return driver.RowsAffected(int64(len(args) / upsertColumns)), nil
}

const upsertColumns = 10

type stubDriver struct {
	rec *execRecorder
}

func (d *stubDriver) Open(name string) (driver.Conn, error) {
	return &stubConn{rec: d.rec}, nil
}

type stubConn struct {
	rec *execRecorder
}

var _ driver.ExecerContext = (*stubConn)(nil)

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *stubConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return c.rec.exec(args)
}

var stubRecorder = &execRecorder{}

func init() {
	sql.Register("storagestub", &stubDriver{rec: stubRecorder})
}
