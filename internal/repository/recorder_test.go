package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ── Recording SQL driver ─────────────────────────────────────────────────────
// Runs gorm's postgres dialector without a server: every statement is
// recorded, execs report affected rows, queries answer from canned results.

type cannedRows struct {
	columns []string
	values  [][]driver.Value
}

type sqlRecorder struct {
	mu    sync.Mutex
	stmts []string

	// affected answers Exec; nil means one row.
	affected func(query string) int64
	// rows answers Query; nil or a nil result means no rows.
	rows func(query string) *cannedRows
}

func (r *sqlRecorder) record(query string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, query)
}

func (r *sqlRecorder) statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stmts...)
}

// matching returns the recorded statements that contain every fragment.
func (r *sqlRecorder) matching(fragments ...string) []string {
	var out []string
	for _, s := range r.statements() {
		ok := true
		for _, f := range fragments {
			if !strings.Contains(s, f) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *sqlRecorder) Connect(context.Context) (driver.Conn, error) { return &recConn{r: r}, nil }
func (r *sqlRecorder) Driver() driver.Driver                        { return recDriver{r: r} }

type recDriver struct{ r *sqlRecorder }

func (d recDriver) Open(string) (driver.Conn, error) { return &recConn{r: d.r}, nil }

type recConn struct{ r *sqlRecorder }

func (c *recConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("recorder: prepared statements not supported")
}
func (c *recConn) Close() error              { return nil }
func (c *recConn) Begin() (driver.Tx, error) { return recTx{}, nil }

func (c *recConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return recTx{}, nil
}

// CheckNamedValue passes every argument through unconverted.
func (c *recConn) CheckNamedValue(*driver.NamedValue) error { return nil }

func (c *recConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.r.record(query)
	n := int64(1)
	if c.r.affected != nil {
		n = c.r.affected(query)
	}
	return driver.RowsAffected(n), nil
}

func (c *recConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.r.record(query)
	var canned *cannedRows
	if c.r.rows != nil {
		canned = c.r.rows(query)
	}
	if canned == nil {
		canned = &cannedRows{}
	}
	return &recRows{canned: canned}, nil
}

type recTx struct{}

func (recTx) Commit() error   { return nil }
func (recTx) Rollback() error { return nil }

type recRows struct {
	canned *cannedRows
	next   int
}

func (r *recRows) Columns() []string { return r.canned.columns }
func (r *recRows) Close() error      { return nil }

func (r *recRows) Next(dest []driver.Value) error {
	if r.next >= len(r.canned.values) {
		return io.EOF
	}
	copy(dest, r.canned.values[r.next])
	r.next++
	return nil
}

// openRecorded returns a postgres gorm.DB whose statements land in rec.
func openRecorded(t *testing.T, rec *sqlRecorder) *gorm.DB {
	t.Helper()
	sqlDB := sql.OpenDB(rec)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}
