package session

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLPersister_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "session.db")
	p, err := OpenSQLPersister(context.Background(), DriverSQLite, dsn, "")
	require.NoError(t, err)
	defer p.Close()

	persisterContract(t, p)
}

func TestSQLPersister_SQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "session.db")

	p, err := OpenSQLPersister(ctx, DriverSQLite, dsn, "sessions")
	require.NoError(t, err)
	store := NewStore(ctx, WithPersister(p))
	store.SetTokens("AT", "RT", WithSSOToken("SSO"))
	store.SetUser(testUser())
	require.NoError(t, p.Close())

	reopened, err := OpenSQLPersister(ctx, DriverSQLite, dsn, "sessions")
	require.NoError(t, err)
	defer reopened.Close()

	rehydrated := NewStore(ctx, WithPersister(reopened))
	assert.Equal(t, store.GetState(), rehydrated.GetState())
}

func TestNewSQLPersister_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLPersister(db, "mysql", "")
	assert.ErrorContains(t, err, "unsupported sql driver")

	_, err = NewSQLPersister(db, DriverPostgres, "kv; DROP TABLE users")
	assert.ErrorContains(t, err, "invalid table name")
}

func TestSQLPersister_Postgres(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p, err := NewSQLPersister(db, DriverPostgres, "ssoadmin_kv")
	require.NoError(t, err)

	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS ssoadmin_kv \(.*BYTEA`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, p.Migrate(ctx))

	mock.ExpectExec(`INSERT INTO ssoadmin_kv \(key, value, updated_at\) VALUES \(\$1, \$2, \$3\)\s+ON CONFLICT \(key\) DO UPDATE`).
		WithArgs(StateKey, []byte("{}"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, p.Save(ctx, StateKey, []byte("{}")))

	mock.ExpectQuery(`SELECT value FROM ssoadmin_kv WHERE key = \$1`).
		WithArgs(StateKey).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("{}")))
	got, err := p.Load(ctx, StateKey)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))

	mock.ExpectQuery(`SELECT value FROM ssoadmin_kv WHERE key = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = p.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`SELECT value FROM ssoadmin_kv WHERE key = \$1`).
		WithArgs(StateKey).
		WillReturnError(errors.New("connection reset"))
	_, err = p.Load(ctx, StateKey)
	assert.ErrorContains(t, err, "connection reset")

	mock.ExpectExec(`DELETE FROM ssoadmin_kv WHERE key = \$1`).
		WithArgs(StateKey).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.Delete(ctx, StateKey))

	assert.NoError(t, mock.ExpectationsWereMet())
}
