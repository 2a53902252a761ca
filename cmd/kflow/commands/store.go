package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/birdayz/kflow/kstore"
	"github.com/birdayz/kflow/stores/pebble"
	"github.com/birdayz/kflow/stores/sqlite"
)

// openStore opens the snapshot store named by spec, one of "file:<dir>",
// "pebble:<dir>" or "sqlite:<path>". A value without a scheme is a file
// store directory.
func openStore(ctx context.Context, spec string) (kstore.Store, error) {
	scheme, path, ok := strings.Cut(spec, ":")
	if !ok {
		scheme, path = "file", spec
	}
	if path == "" {
		return nil, fmt.Errorf("store %q: missing path", spec)
	}

	switch scheme {
	case "file":
		return kstore.NewFileStore(path)
	case "pebble":
		return pebble.Open(path)
	case "sqlite":
		return sqlite.Open(ctx, path)
	default:
		return nil, fmt.Errorf("store %q: unknown kind %q", spec, scheme)
	}
}
