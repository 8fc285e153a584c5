package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/recovero-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestRecoveryMigrationCascadesLogs(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_recovery_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no recovery migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS abandoned_carts",
		"ux_abandoned_carts_session_id ON abandoned_carts (session_id) WHERE session_id IS NOT NULL",
		"CREATE TABLE IF NOT EXISTS recovery_logs",
		"FOREIGN KEY (cart_id) REFERENCES abandoned_carts(id) ON DELETE CASCADE",
		"ux_recovery_logs_token ON recovery_logs (token) WHERE token <> ''",
		"CONSTRAINT ux_customer_orders_order_ref UNIQUE (order_ref)",
		"DROP TABLE IF EXISTS abandoned_carts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
