package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupWorkspace writes a config.toml pointing at a sqlite file and returns
// the config dir and an open handle on the same database
func setupWorkspace(t *testing.T) (string, *gorm.DB) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cart.db")
	content := fmt.Sprintf(`
[database]
driver = "sqlite"
path = %q
max_open_conns = 1
max_idle_conns = 1

[jwt]
secret = "cartctl-test-secret-0123456789abcdef"
issuer = "storefront"
`, dbPath)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         dbPath,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.AutoMigrate())
	require.NoError(t, database.DB.Create(&models.ProductModel{ID: 1, Title: "Blue Shirt", Price: decimal.RequireFromString("19.99")}).Error)
	return dir, database.DB
}

func runCmd(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"-config", dir}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Usage(t *testing.T) {
	_, stderr, err := runCmd(t, t.TempDir())
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Commands:")

	_, stderr, err = runCmd(t, t.TempDir(), "explode")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, `unknown command "explode"`)
}

func TestRun_AuditAndRepair(t *testing.T) {
	dir, db := setupWorkspace(t)
	line := models.NewCartLineModel(1, 1500, cart.GuestOwner("203.0.113.7"))
	require.NoError(t, db.Create(line).Error)

	stdout, _, err := runCmd(t, dir, "audit", "-ip", "203.0.113.7")
	require.ErrorIs(t, err, errCriticalIssues)
	var report cart.IntegrityReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, cart.StatusIssuesFound, report.Status)
	assert.True(t, report.HasCriticalIssues)

	stdout, _, err = runCmd(t, dir, "repair", "-ip", "203.0.113.7", "-orphaned=false", "-merge=false")
	require.NoError(t, err)
	var repair cart.RepairReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &repair))
	require.Len(t, repair.Results, 1)
	assert.Equal(t, cart.IssueInvalidQuantities, repair.Results[0].Type)
	assert.True(t, repair.Results[0].Success)
	assert.Equal(t, int64(1), repair.Results[0].Affected)

	stdout, _, err = runCmd(t, dir, "audit", "-ip", "203.0.113.7")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, cart.StatusHealthy, report.Status)
}

func TestRun_AuditRequiresOwner(t *testing.T) {
	dir, _ := setupWorkspace(t)
	_, _, err := runCmd(t, dir, "audit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-customer or -ip is required")
}

func TestRun_Cleanup(t *testing.T) {
	dir, db := setupWorkspace(t)
	stale := models.NewCartLineModel(1, 2, cart.GuestOwner("198.51.100.1"))
	old := time.Now().Add(-90 * 24 * time.Hour)
	stale.CreatedAt, stale.UpdatedAt = old, old
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Create(models.NewCartLineModel(1, 1, cart.GuestOwner("198.51.100.2"))).Error)

	stdout, _, err := runCmd(t, dir, "cleanup", "-ttl", "720h")
	require.NoError(t, err)
	var out struct {
		Removed int64 `json:"removed"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, int64(1), out.Removed)

	_, _, err = runCmd(t, dir, "cleanup", "-ttl", "10m")
	assert.Error(t, err)
}

func TestRun_TokenAndOrders(t *testing.T) {
	dir, _ := setupWorkspace(t)

	stdout, _, err := runCmd(t, dir, "token", "-customer", "42", "-email", "a@example.com")
	require.NoError(t, err)
	var issued struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &issued))
	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, "Bearer", issued.TokenType)

	_, _, err = runCmd(t, dir, "token")
	assert.Error(t, err)

	stdout, _, err = runCmd(t, dir, "orders", "-customer", "42")
	require.NoError(t, err)
	var page struct {
		Items []json.RawMessage `json:"items"`
		Total int64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &page))
	assert.Zero(t, page.Total)
}
