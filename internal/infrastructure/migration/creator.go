package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/storefront/backend/internal/infrastructure/config"
)

const migrationUpTemplate = `-- Migration: {{.Name}} ({{.Driver}})
-- Created: {{.Timestamp}}
-- Description: {{.Description}}

-- Write your UP migration SQL here

`

const migrationDownTemplate = `-- Migration: {{.Name}} ({{.Driver}}, rollback)
-- Created: {{.Timestamp}}
-- Description: Rollback for {{.Description}}

-- Write your DOWN migration SQL here

`

// Drivers lists every driver that keeps its own migrations directory
var Drivers = []string{config.DriverPostgres, config.DriverMySQL, config.DriverSQLite}

// MigrationFile represents a migration file pair for one driver
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	Driver      string
	UpPath      string
	DownPath    string
}

// CreateMigration creates a migration file pair with the same version in the
// directory of each driver under migrationsRoot. With no drivers given, all
// of Drivers are used.
func CreateMigration(migrationsRoot, name, description string, drivers ...string) ([]*MigrationFile, error) {
	base := sanitizeName(name)
	if base == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if len(drivers) == 0 {
		drivers = Drivers
	}

	// YYYYMMDDHHMMSS sorts after the zero-padded initial versions
	now := time.Now()
	version := now.Format("20060102150405")
	timestamp := now.Format(time.RFC3339)

	created := make([]*MigrationFile, 0, len(drivers))
	for _, driver := range drivers {
		if _, err := SQLDriverName(driver); err != nil {
			removeCreated(created)
			return nil, err
		}
		dir := Dir(migrationsRoot, driver)
		if err := os.MkdirAll(dir, 0755); err != nil {
			removeCreated(created)
			return nil, fmt.Errorf("failed to create migrations directory: %w", err)
		}

		fileBase := fmt.Sprintf("%s_%s", version, base)
		mf := &MigrationFile{
			Version:     version,
			Name:        name,
			Description: description,
			Timestamp:   timestamp,
			Driver:      driver,
			UpPath:      filepath.Join(dir, fileBase+".up.sql"),
			DownPath:    filepath.Join(dir, fileBase+".down.sql"),
		}

		if err := createMigrationFile(mf.UpPath, migrationUpTemplate, mf); err != nil {
			removeCreated(created)
			return nil, fmt.Errorf("failed to create up migration: %w", err)
		}
		if err := createMigrationFile(mf.DownPath, migrationDownTemplate, mf); err != nil {
			_ = os.Remove(mf.UpPath)
			removeCreated(created)
			return nil, fmt.Errorf("failed to create down migration: %w", err)
		}
		created = append(created, mf)
	}
	return created, nil
}

func removeCreated(files []*MigrationFile) {
	for _, mf := range files {
		_ = os.Remove(mf.UpPath)
		_ = os.Remove(mf.DownPath)
	}
}

// createMigrationFile creates a single migration file from template
func createMigrationFile(path, tmplContent string, data *MigrationFile) error {
	tmpl, err := template.New("migration").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// sanitizeName converts a migration name to a safe file name format
func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			result = append(result, c)
		case c >= 'A' && c <= 'Z':
			result = append(result, c+'a'-'A')
		case c >= '0' && c <= '9':
			result = append(result, c)
		case c == ' ' || c == '-' || c == '_':
			if len(result) > 0 && result[len(result)-1] != '_' {
				result = append(result, '_')
			}
		}
	}
	return strings.TrimSuffix(string(result), "_")
}

// ListMigrations returns the sorted base names of the migrations in dir
func ListMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok && base != "" {
			migrations = append(migrations, base)
		}
	}
	sort.Strings(migrations)
	return migrations, nil
}
