package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ninjaos/autopilot/internal/store"
)

func TestOpenStoreHonorsEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOPILOT_CONFIG", filepath.Join(dir, "config.json"))
	t.Setenv("AUTOPILOT_DATA_DIR", dir)
	t.Setenv("AUTOPILOT_DB_PATH", filepath.Join(dir, "autopilot.db"))

	st, err := openStore()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if _, err := os.Stat(filepath.Join(dir, "autopilot.db")); err != nil {
		t.Fatalf("db not created at env path: %v", err)
	}
	if _, err := st.ListActions(store.ActionProposed, 5); err != nil {
		t.Fatalf("list actions: %v", err)
	}
}

func TestActionsListEmptyQueue(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOPILOT_CONFIG", filepath.Join(dir, "config.json"))
	t.Setenv("AUTOPILOT_DATA_DIR", dir)
	t.Setenv("AUTOPILOT_DB_PATH", filepath.Join(dir, "autopilot.db"))

	if err := runActionsList(actionsListCmd, nil); err != nil {
		t.Fatalf("actions list: %v", err)
	}
}
