// Package integration runs the storefront repositories and checkout flow
// against a real PostgreSQL started with testcontainers.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/migration"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testDBName   = "storefront_test"
	testUser     = "postgres"
	testPassword = "storefront"
)

var (
	// Shared container for all tests in the package
	sharedContainer    *tcpostgres.PostgresContainer
	sharedContainerMu  sync.Mutex
	sharedDatabaseConf *config.DatabaseConfig
)

// TestDB is a migrated database for one test
type TestDB struct {
	*persistence.Database
	Config *config.DatabaseConfig
	t      *testing.T
}

// NewSharedTestDB returns a connection to the shared PostgreSQL container,
// starting and migrating it on first use. Tables are truncated before returning.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase(testDBName),
			tcpostgres.WithUsername(testUser),
			tcpostgres.WithPassword(testPassword),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		host, err := container.Host(ctx)
		require.NoError(t, err)
		port, err := container.MappedPort(ctx, "5432/tcp")
		require.NoError(t, err)

		cfg := &config.DatabaseConfig{
			Driver:       config.DriverPostgres,
			Host:         host,
			Port:         port.Int(),
			User:         testUser,
			Password:     testPassword,
			DBName:       testDBName,
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		}
		runMigrations(t, cfg)

		sharedContainer = container
		sharedDatabaseConf = cfg
	}

	var opts []persistence.Option
	if os.Getenv("TEST_DB_DEBUG") != "" {
		opts = append(opts, persistence.WithGormLogger(gormlogger.Default.LogMode(gormlogger.Info)))
	}
	database, err := persistence.NewDatabase(sharedDatabaseConf, opts...)
	require.NoError(t, err, "Failed to connect to database")

	tdb := &TestDB{Database: database, Config: sharedDatabaseConf, t: t}
	tdb.CleanTables()
	t.Cleanup(func() {
		_ = database.Close()
	})
	return tdb
}

// CleanTables truncates every storefront table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	err := tdb.DB.Exec(`TRUNCATE TABLE payments, order_lines, orders, cart_details, products, brands, categories RESTART IDENTITY CASCADE`).Error
	require.NoError(tdb.t, err, "Failed to truncate tables")
}

// runMigrations applies the postgres migrations the way cmd/migrate does
func runMigrations(t *testing.T, cfg *config.DatabaseConfig) {
	t.Helper()

	root := findMigrationsPath()
	require.NotEmpty(t, root, "Could not find migrations directory")

	sqlDB, err := migration.Open(cfg)
	require.NoError(t, err)
	defer sqlDB.Close()

	log, err := logger.New(logger.DefaultConfig())
	require.NoError(t, err)

	m, err := migration.New(sqlDB, cfg.Driver, root, log)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Up(), "Failed to run migrations")
}

// findMigrationsPath walks up from this file to the repository migrations directory
func findMigrationsPath() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, "migrations")
		if _, err := os.Stat(p); err == nil {
			return p
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

// CleanupSharedContainer terminates the shared container. Call it from TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedDatabaseConf = nil
	}
}
