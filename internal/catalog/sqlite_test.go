package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSourceSeedAndLoadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	src, err := NewSQLiteSource(dbPath)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()

	empty, err := src.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, src.Seed(ctx, BuiltinData()))

	empty, err = src.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	loaded, err := src.Load(ctx)
	require.NoError(t, err)

	reference, err := New(BuiltinData())
	require.NoError(t, err)

	// The round trip must keep every entity and edge intact.
	assert.Equal(t, reference.Fingerprint(), loaded.Fingerprint())
	assert.Equal(t, reference.Counts(), loaded.Counts())

	rule, ok := loaded.Rule("rule-pregnancy-anemia")
	require.True(t, ok)
	require.NotNil(t, rule.Constraint)
	assert.NotNil(t, rule.Constraint.RequiresPregnant)
	assert.True(t, *rule.Constraint.RequiresPregnant)

	elderly, ok := loaded.Rule("rule-elderly-anemia")
	require.True(t, ok)
	require.NotNil(t, elderly.Constraint)
	require.NotNil(t, elderly.Constraint.MinAge)
	assert.Equal(t, 65, *elderly.Constraint.MinAge)
}

func TestSQLiteSourceReopenSeesSeededCatalog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	src, err := NewSQLiteSource(dbPath)
	require.NoError(t, err)
	require.NoError(t, src.Seed(ctx, BuiltinData()))
	require.NoError(t, src.Close())

	reopened, err := NewSQLiteSource(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)

	reference, err := New(BuiltinData())
	require.NoError(t, err)
	assert.Equal(t, reference.Fingerprint(), loaded.Fingerprint())
}

func TestSQLiteSourceLoadQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, canonical_name, unit FROM tests").
		WillReturnError(errors.New("disk I/O error"))

	src := NewSQLiteSourceFromDB(db)
	cat, err := src.Load(context.Background())
	assert.Error(t, err)
	assert.Nil(t, cat)
	assert.Contains(t, err.Error(), "loading tests")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteSourceLoadScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// A short row forces a scan failure.
	mock.ExpectQuery("SELECT id, canonical_name, unit FROM tests").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("test-hgb"))

	src := NewSQLiteSourceFromDB(db)
	cat, err := src.Load(context.Background())
	assert.Error(t, err)
	assert.Nil(t, cat)
}
