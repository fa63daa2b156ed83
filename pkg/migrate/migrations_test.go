package migrate

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(Files(), "migrations/*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := fs.ReadFile(Files(), matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))

	entries, err := fs.ReadDir(Files(), embeddedDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestPurchasesMigrationGuardsSettlement(t *testing.T) {
	content := readMigration(t, "create_purchases_refunds")
	for _, sub := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_purchases_order_item_id ON purchases (order_item_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_refunds_open ON refunds (purchase_id) WHERE status IN ('pending', 'approved')",
		"DROP TABLE IF EXISTS purchases",
	} {
		require.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestOrdersMigrationConstraints(t *testing.T) {
	content := readMigration(t, "create_orders")
	for _, sub := range []string{
		"status order_status NOT NULL DEFAULT 'pending'",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_gateway_order_id",
		"gateway_client_secret text",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
	} {
		require.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestSourceServesEmbeddedForDefaultDir(t *testing.T) {
	fsys, err := source(DefaultDir)
	require.NoError(t, err)
	names, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	require.Contains(t, names, "20260301090300_create_orders.sql")

	_, err = source("")
	require.Error(t, err)
}

func TestValidateReportsEveryBrokenMigration(t *testing.T) {
	good := "-- +goose Up\nCREATE TABLE a (id int);\n-- +goose Down\nDROP TABLE a;\n"
	fsys := fstest.MapFS{
		"20260401000000_ok.sql":           {Data: []byte(good)},
		"20260401000000_same_version.sql": {Data: []byte(good)},
		"20260401000100_no_down.sql":      {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"20260401000200_open_block.sql": {Data: []byte(
			"-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 2;\n")},
		"add-games.sql": {Data: []byte(good)},
		"README.md":     {Data: []byte("not a migration")},
	}

	err := Validate(fsys)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 4, "%v", err)
	msg := err.Error()
	for _, want := range []string{"already used", "no_down.sql: missing", "unterminated statement block", "add-games.sql"} {
		require.Contains(t, msg, want)
	}
}

func TestCreateSQLMigrationBumpsPastNewestVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	first, err := CreateSQLMigration(dir, "Add wishlist", now)
	require.NoError(t, err)
	require.Equal(t, "20260402100000_add_wishlist.sql", filepath.Base(first))

	second, err := CreateSQLMigration(dir, "wishlist-index", now)
	require.NoError(t, err)
	require.Equal(t, "20260402100001_wishlist_index.sql", filepath.Base(second))

	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!", now)
	require.Error(t, err)
}
