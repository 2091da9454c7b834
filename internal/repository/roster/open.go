package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/uwb-tracker/internal/config"
)

var errUnknownBackend = errors.New("unknown roster backend")

// Open creates the repository selected by settings.
func Open(ctx context.Context, settings config.Roster) (Repository, error) {
	switch settings.Backend {
	case config.BackendFile, "":
		return NewFileRepository(settings.TagsFile, settings.AnchorsFile), nil
	case config.BackendSQLite:
		return NewSQLiteRepository(ctx, settings.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, settings.Backend)
	}
}
