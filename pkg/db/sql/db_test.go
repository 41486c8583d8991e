package sql

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(context.Background(), `CREATE TABLE items (id TEXT PRIMARY KEY, n INTEGER NOT NULL)`)
	require.NoError(t, err)
	return db
}

func TestRebind(t *testing.T) {
	pg := &DB{Driver: DriverPostgres}
	lite := &DB{Driver: DriverSQLite}
	q := "UPDATE slots SET reserved = ? WHERE id = ? AND version = ?"

	assert.Equal(t, "UPDATE slots SET reserved = $1 WHERE id = $2 AND version = $3", pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "whatever")
	require.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO items (id, n) VALUES ('a', 1)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO items (id, n) VALUES ('a', 2)`)
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestWithinTransaction_RollbackOnError(t *testing.T) {
	db := openTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()
	sentinel := errors.New("abort")

	err := tm.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := db.Conn(ctx).ExecContext(ctx, `INSERT INTO items (id, n) VALUES ('x', 1)`); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithinTransaction_CommitAndNested(t *testing.T) {
	db := openTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	err := tm.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := db.Conn(ctx).ExecContext(ctx, `INSERT INTO items (id, n) VALUES ('x', 1)`); err != nil {
			return err
		}
		return tm.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := db.Conn(ctx).ExecContext(ctx, `INSERT INTO items (id, n) VALUES ('y', 2)`)
			return err
		})
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Equal(t, 2, count)
}
