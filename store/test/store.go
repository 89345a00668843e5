package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/localchat/internal/profile"
	"github.com/hrygo/localchat/internal/version"
	"github.com/hrygo/localchat/store"
	"github.com/hrygo/localchat/store/db"
)

// NewTestingStore opens a migrated store for the driver named by DRIVER.
// sqlite runs on a temp file; postgres needs POSTGRES_TEST_DSN and is
// skipped without it.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	profile := getTestingProfile(t)

	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	t.Cleanup(func() { dbDriver.Close() })

	s := store.New(dbDriver, profile)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return s
}

func getTestingProfile(t *testing.T) *profile.Profile {
	t.Helper()
	driver := getDriverFromEnv()
	dir := t.TempDir()

	p := &profile.Profile{
		Mode:    "prod",
		Data:    dir,
		Driver:  driver,
		Version: version.GetCurrentVersion("prod"),
	}
	switch driver {
	case "sqlite":
		p.DSN = filepath.Join(dir, "localchat_test.db")
	case "postgres":
		p.DSN = os.Getenv("POSTGRES_TEST_DSN")
		if p.DSN == "" {
			t.Skip("POSTGRES_TEST_DSN not set")
		}
	default:
		t.Fatalf("unsupported test driver: %s", driver)
	}
	return p
}

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}
