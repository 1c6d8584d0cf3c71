package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver: got %s", cfg.DBDriver)
	}
	if cfg.NavTimeout != 30*time.Second {
		t.Errorf("NavTimeout: got %v", cfg.NavTimeout)
	}
	if cfg.MaxPages != 0 {
		t.Errorf("MaxPages: got %d, want 0 (source default)", cfg.MaxPages)
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("REQUEST_DELAY", "3s")

	cfg, err := Load([]string{"--source", "cyrano", "--max-pages", "2", "--db-driver", "sqlite"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PostgresHost != "db.internal" {
		t.Errorf("PostgresHost: got %s", cfg.PostgresHost)
	}
	if cfg.RequestDelay != 3*time.Second {
		t.Errorf("RequestDelay: got %v", cfg.RequestDelay)
	}
	if cfg.Source != "cyrano" || cfg.MaxPages != 2 || cfg.DBDriver != "sqlite" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	want := "host=db.internal port=5433 user=" + cfg.PostgresUser +
		" password=" + cfg.PostgresPassword + " dbname=" + cfg.PostgresDB + " sslmode=" + cfg.PostgresSSLMode
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	if _, err := Load([]string{"--db-driver", "mysql"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
