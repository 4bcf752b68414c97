package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
)

// recordingConn counts transaction begins, commits and rollbacks. Registered
// once as the "txrecorder" driver; every sql.Open for that name shares it.
type recordingConn struct {
	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
}

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) Begin() (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins++
	return recordingTx{c}, nil
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins, c.commits, c.rollbacks = 0, 0, 0
}

func (c *recordingConn) counts() (begins, commits, rollbacks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begins, c.commits, c.rollbacks
}

type recordingTx struct{ c *recordingConn }

func (t recordingTx) Commit() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.commits++
	return nil
}

func (t recordingTx) Rollback() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.rollbacks++
	return nil
}

type recordingDriver struct{ conn *recordingConn }

func (d recordingDriver) Open(name string) (driver.Conn, error) { return d.conn, nil }

var txConn = func() *recordingConn {
	c := &recordingConn{}
	sql.Register("txrecorder", recordingDriver{conn: c})
	return c
}()

func openRecorderDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("txrecorder", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	txConn.reset()
	return db
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	db := openRecorderDB(t)

	var ran bool
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("withtx: %v", err)
	}
	if !ran {
		t.Fatalf("fn never ran")
	}
	begins, commits, rollbacks := txConn.counts()
	if begins != 1 || commits != 1 || rollbacks != 0 {
		t.Fatalf("begins=%d commits=%d rollbacks=%d, want 1/1/0", begins, commits, rollbacks)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openRecorderDB(t)

	boom := errors.New("no good")
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error back, got %v", err)
	}
	begins, commits, rollbacks := txConn.counts()
	if begins != 1 || commits != 0 || rollbacks != 1 {
		t.Fatalf("begins=%d commits=%d rollbacks=%d, want 1/0/1", begins, commits, rollbacks)
	}
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	db := openRecorderDB(t)

	didPanic := func() (p bool) {
		defer func() { p = recover() != nil }()
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
			panic("mid-transaction panic")
		})
		return false
	}()
	if !didPanic {
		t.Fatalf("expected the panic to propagate")
	}
	_, commits, rollbacks := txConn.counts()
	if commits != 0 || rollbacks != 1 {
		t.Fatalf("commits=%d rollbacks=%d, want 0/1", commits, rollbacks)
	}
}

func TestOpenPostgresPingsAndReturnsHandle(t *testing.T) {
	db, err := OpenPostgres(context.Background(), "txrecorder", "", PostgresPoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := HealthCheck(context.Background(), db, 0); err == nil {
		t.Fatalf("expected zero timeout to fail the ping")
	}
}
