package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keyward/licensing-backend/pkg/migrate"
)

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir failed validation: %v", err)
	}
}

func TestLicensesMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_licenses_table.sql")

	checks := []string{
		"CREATE TYPE license_status AS ENUM ('active', 'suspended', 'expired', 'cancelled')",
		"CREATE TABLE IF NOT EXISTS licenses",
		"REFERENCES license_keys(id) ON DELETE CASCADE",
		"REFERENCES products(id) ON DELETE CASCADE",
		"max_seats INTEGER NOT NULL DEFAULT 1",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_licenses_key_product",
		"DROP TABLE IF EXISTS licenses",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestActivationsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_activations_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS activations",
		"REFERENCES licenses(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_activations_license_fingerprint ON activations (license_id, fingerprint, deactivated_at)",
		"WHERE deactivated_at IS NULL",
		"DROP TABLE IF EXISTS activations",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLicenseKeysMigrationContainsUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_license_keys_table.sql")

	checks := []string{
		"key TEXT NOT NULL UNIQUE",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_license_keys_brand_customer ON license_keys (brand_id, customer_email)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
