package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Connect(ctx, DriverSQLite, filepath.Join(t.TempDir(), "lookup.db"))
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// openPostgres skips unless TEST_DATABASE_URL points at a reachable server
func openPostgres(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping postgres tests - TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := Connect(ctx, DriverPostgres, dbURL)
	if err != nil {
		t.Skipf("Skipping postgres tests - database not available: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func exerciseKeyValueStore(t *testing.T, store *Store) {
	ctx := context.Background()
	key := "recent_searches:" + uuid.NewString()
	t.Cleanup(func() { store.Delete(ctx, key) })

	if _, found, err := store.Get(ctx, key); err != nil || found {
		t.Fatalf("Get missing key = found %v, err %v", found, err)
	}

	if err := store.Put(ctx, key, []byte(`[{"name":"Gandalf"}]`)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	value, found, err := store.Get(ctx, key)
	if err != nil || !found || string(value) != `[{"name":"Gandalf"}]` {
		t.Fatalf("Get = %q, %v, %v", value, found, err)
	}

	if err := store.Put(ctx, key, []byte(`[]`)); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}
	if value, _, _ := store.Get(ctx, key); string(value) != `[]` {
		t.Errorf("overwritten value = %q, want []", value)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, found, _ := store.Get(ctx, key); found {
		t.Error("deleted key should be missing")
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestStore_SQLiteKeyValue(t *testing.T) {
	exerciseKeyValueStore(t, openSQLite(t))
}

func TestStore_PostgresKeyValue(t *testing.T) {
	exerciseKeyValueStore(t, openPostgres(t))
}

func TestStore_HealthCheckAndStats(t *testing.T) {
	store := openSQLite(t)

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck error: %v", err)
	}
	if stats := store.Stats(); stats.MaxOpenConnections != 1 {
		t.Errorf("sqlite max open connections = %d, want 1", stats.MaxOpenConnections)
	}
	if store.Driver() != DriverSQLite {
		t.Errorf("driver = %q", store.Driver())
	}

	store.Close()
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck on a closed store should fail")
	}
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	store := openSQLite(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate error: %v", err)
	}
}

func TestConnect_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	if _, err := Connect(ctx, "mysql", "dsn"); err == nil {
		t.Error("unsupported driver should be rejected")
	}
	if _, err := Connect(ctx, DriverSQLite, "  "); err == nil {
		t.Error("empty dsn should be rejected")
	}
}

func TestRebind(t *testing.T) {
	query := `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)`

	postgres := &Store{driver: DriverPostgres}
	if got := postgres.rebind(query); got != `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, $3)` {
		t.Errorf("postgres rebind = %q", got)
	}
	sqlite := &Store{driver: DriverSQLite}
	if got := sqlite.rebind(query); got != query {
		t.Errorf("sqlite rebind should leave the query unchanged, got %q", got)
	}
}

func TestParseSQLStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (
    id TEXT
);

-- second
CREATE INDEX b ON a (id);
SELECT 1`

	statements := parseSQLStatements(content)
	want := []string{"CREATE TABLE a ( id TEXT )", "CREATE INDEX b ON a (id)", "SELECT 1"}
	if len(statements) != len(want) {
		t.Fatalf("statements = %q, want %q", statements, want)
	}
	for i := range want {
		if statements[i] != want[i] {
			t.Errorf("statement %d = %q, want %q", i, statements[i], want[i])
		}
	}

	if len(parseSQLStatements(schemaSQL)) != 2 {
		t.Errorf("embedded schema should contain 2 statements")
	}
}

func TestStoreProperties(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	properties := gopter.NewProperties(nil)

	properties.Property("Put then Get returns the last value written", prop.ForAll(
		func(key string, first, second string) bool {
			if err := store.Put(ctx, key, []byte(first)); err != nil {
				return false
			}
			if err := store.Put(ctx, key, []byte(second)); err != nil {
				return false
			}
			value, found, err := store.Get(ctx, key)
			return err == nil && found && string(value) == second
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
