package roster

import (
	"context"
	"errors"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
)

// Repository defines roster persistence.
type Repository interface {
	Tags(ctx context.Context) ([]domain.Tag, error)
	Anchors(ctx context.Context) ([]domain.AnchorSite, error)

	CreateTag(ctx context.Context, tag domain.Tag) error
	UpdateTag(ctx context.Context, tag domain.Tag) error
	DeleteTag(ctx context.Context, tagID int) error

	CreateAnchor(ctx context.Context, anchor domain.AnchorSite) error
	UpdateAnchor(ctx context.Context, anchor domain.AnchorSite) error
	DeleteAnchor(ctx context.Context, anchorID string) error

	Close() error
}

var (
	// ErrNotFound is returned when the addressed tag or anchor does not exist.
	ErrNotFound = errors.New("roster entry not found")
	// ErrAlreadyExists is returned when creating an entry with a taken id.
	ErrAlreadyExists = errors.New("roster entry already exists")
)
