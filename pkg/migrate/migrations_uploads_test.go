package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mateovaldes/idp-registry-backend/pkg/migrate"
)

func TestUploadsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_uploads_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no uploads migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS uploads",
		"FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE",
		"CHECK (attempt >= 1)",
		"CHECK (progress >= 0 AND progress <= 100)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_uploads_application_slot",
		"DROP TABLE IF EXISTS uploads",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
