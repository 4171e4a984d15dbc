package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/expstack/expstack/internal/engine"
	"github.com/expstack/expstack/internal/storage"
)

// openKV opens the configured storage backend.
func openKV() (storage.KV, error) {
	switch storeBackend {
	case "sqlite":
		return storage.OpenSQLite(dbPath)
	case "bolt":
		return storage.OpenBolt(dbPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want sqlite or bolt)", storeBackend)
	}
}

// resolveTest accepts a full test id, a unique id prefix, or an exact
// test name, and returns the full id.
func resolveTest(eng *engine.Engine, ref string) (string, error) {
	var matches []string
	for _, t := range eng.ListAll() {
		if t.ID == ref {
			return t.ID, nil
		}
		if t.Name == ref || strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no test matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d tests match)", ref, len(matches))
	}
}

// withEngine opens storage, loads the engine, executes the function, and
// flushes pending writes on the way out.
func withEngine(fn func(*engine.Engine) error) error {
	kv, err := openKV()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer kv.Close()

	eng, err := engine.New(context.Background(), kv)
	if err != nil {
		return fmt.Errorf("failed to load engine: %w", err)
	}
	defer eng.Close()

	return fn(eng)
}
