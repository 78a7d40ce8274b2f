package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/docreview-backend/internal/history"
	"github.com/angelmondragon/docreview-backend/pkg/config"
	"github.com/angelmondragon/docreview-backend/pkg/db"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	"github.com/angelmondragon/docreview-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.ValidateEmbedded())
}

func TestReviewHistoryMigrationContainsConstraints(t *testing.T) {
	timeColumn := map[string]string{
		db.DialectPostgres: "uploaded_at TIMESTAMPTZ NOT NULL",
		db.DialectSQLite:   "uploaded_at DATETIME NOT NULL",
	}
	for _, dialect := range migrate.Dialects {
		t.Run(dialect, func(t *testing.T) {
			matches, err := filepath.Glob(filepath.Join("migrations", dialect, "*_create_review_history.sql"))
			require.NoError(t, err)
			require.NotEmpty(t, matches, "no review history migration found")

			data, err := os.ReadFile(matches[0])
			require.NoError(t, err)
			content := string(data)

			for _, sub := range []string{
				"CREATE TABLE IF NOT EXISTS review_history",
				"CONSTRAINT review_history_session_document_key UNIQUE (session_id, document_id)",
				"CHECK (status IN ('pending', 'authorized', 'rejected'))",
				"DROP TABLE IF EXISTS review_history",
				timeColumn[dialect],
			} {
				assert.Contains(t, content, sub)
			}
		})
	}
}

func TestValidateSetRequiresMatchingDialects(t *testing.T) {
	up := []byte("-- +goose Up\n-- +goose Down\n")
	matched := fstest.MapFS{
		"m/postgres/20260101000000_a.sql": {Data: up},
		"m/sqlite3/20260101000000_a.sql":  {Data: up},
	}
	require.NoError(t, migrate.ValidateSet(matched, "m"))

	missing := fstest.MapFS{
		"m/postgres/20260101000000_a.sql": {Data: up},
		"m/postgres/20260102000000_b.sql": {Data: up},
		"m/sqlite3/20260101000000_a.sql":  {Data: up},
	}
	assert.Error(t, migrate.ValidateSet(missing, "m"))

	onlyOne := fstest.MapFS{
		"m/postgres/20260101000000_a.sql": {Data: up},
	}
	assert.Error(t, migrate.ValidateSet(onlyOne, "m"))
}

func TestRunRejectsUnknownDialect(t *testing.T) {
	client, err := db.New(context.Background(), config.DBConfig{SQLitePath: filepath.Join(t.TempDir(), "archive.db")}, true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	assert.Error(t, migrate.Run(context.Background(), sqlDB, "mysql", "up"))
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"m/create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"m/20260101000000_things.sql": {Data: []byte("-- +goose Up\n")},
		},
		"duplicate version": {
			"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"m/20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"empty": {
			"m/README.md": {Data: []byte("notes")},
		},
		"unbalanced statement block": {
			"m/20260101000000_things.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, migrate.Validate(fsys, "m"))
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	paths, err := migrate.CreateSQLMigration(dir, "Add Reviewer Notes!")
	require.NoError(t, err)
	require.Len(t, paths, len(migrate.Dialects))
	for i, dialect := range migrate.Dialects {
		assert.Equal(t, filepath.Join(dir, dialect), filepath.Dir(paths[i]))
		assert.True(t, strings.HasSuffix(paths[i], "_add_reviewer_notes.sql"), paths[i])
	}
	assert.Equal(t, filepath.Base(paths[0]), filepath.Base(paths[1]))
	require.NoError(t, migrate.ValidateSet(os.DirFS(dir), "."))

	second, err := migrate.CreateSQLMigration(dir, "add reviewer notes index")
	require.NoError(t, err)
	assert.Less(t, filepath.Base(paths[0]), filepath.Base(second[0]))
	require.NoError(t, migrate.ValidateSet(os.DirFS(dir), "."))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestRunUpAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{SQLitePath: filepath.Join(t.TempDir(), "archive.db")}, true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(ctx, sqlDB, client.Dialect(), "up"))

	version, err := migrate.Version(ctx, sqlDB, client.Dialect())
	require.NoError(t, err)
	assert.Equal(t, int64(20260301000000), version)

	archive, err := history.NewArchiveRepository(client.DB())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, archive.Save(ctx, "sess-1", history.Entry{
		Timestamp:    now,
		DocumentID:   1,
		DocumentName: "contract.pdf",
		Status:       enums.DocumentStatusAuthorized,
		UploadedAt:   now.Add(-time.Minute),
		DecidedAt:    &now,
	}))

	rows, err := archive.List(ctx, history.ArchiveFilter{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.DocumentStatusAuthorized, rows[0].Status)
	assert.True(t, rows[0].UploadedAt.Equal(now.Add(-time.Minute)))
	require.NotNil(t, rows[0].DecidedAt)
	assert.True(t, rows[0].DecidedAt.Equal(now))

	require.NoError(t, migrate.MigrateToVersion(ctx, sqlDB, client.Dialect(), "0"))
	version, err = migrate.Version(ctx, sqlDB, client.Dialect())
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}

func TestMaybeRun(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{SQLitePath: filepath.Join(t.TempDir(), "archive.db")}, true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{}
	require.NoError(t, migrate.MaybeRun(ctx, cfg, nil, client))

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	version, err := migrate.Version(ctx, sqlDB, client.Dialect())
	require.NoError(t, err)
	assert.Equal(t, int64(0), version, "auto-migrate disabled should leave the schema alone")

	cfg.FeatureFlags.AutoMigrate = true
	require.NoError(t, migrate.MaybeRun(ctx, cfg, nil, client))
	version, err = migrate.Version(ctx, sqlDB, client.Dialect())
	require.NoError(t, err)
	assert.Equal(t, int64(20260301000000), version)
}
