package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/oshokin/uwb-tracker/internal/config"
	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
)

// FileRepository persists the roster as two JSON arrays on disk.
// A missing file reads as an empty list.
type FileRepository struct {
	tagsPath    string
	anchorsPath string
	// mu serializes read-modify-write cycles on both files.
	mu sync.Mutex
}

// NewFileRepository creates a repository over the given tag and anchor files.
func NewFileRepository(tagsPath, anchorsPath string) *FileRepository {
	return &FileRepository{
		tagsPath:    filepath.Clean(tagsPath),
		anchorsPath: filepath.Clean(anchorsPath),
	}
}

// Paths returns the watched files.
func (r *FileRepository) Paths() []string {
	return []string{r.tagsPath, r.anchorsPath}
}

// Tags reads the tag list.
func (r *FileRepository) Tags(_ context.Context) ([]domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return readList[domain.Tag](r.tagsPath)
}

// Anchors reads the anchor list.
func (r *FileRepository) Anchors(_ context.Context) ([]domain.AnchorSite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return readList[domain.AnchorSite](r.anchorsPath)
}

// CreateTag appends a tag.
func (r *FileRepository) CreateTag(_ context.Context, tag domain.Tag) error {
	return mutate(&r.mu, r.tagsPath, func(tags []domain.Tag) ([]domain.Tag, error) {
		if slices.ContainsFunc(tags, sameTag(tag.TagID)) {
			return nil, fmt.Errorf("tag %d: %w", tag.TagID, ErrAlreadyExists)
		}

		return append(tags, tag), nil
	})
}

// UpdateTag replaces a tag by id.
func (r *FileRepository) UpdateTag(_ context.Context, tag domain.Tag) error {
	return mutate(&r.mu, r.tagsPath, func(tags []domain.Tag) ([]domain.Tag, error) {
		i := slices.IndexFunc(tags, sameTag(tag.TagID))
		if i < 0 {
			return nil, fmt.Errorf("tag %d: %w", tag.TagID, ErrNotFound)
		}

		tags[i] = tag

		return tags, nil
	})
}

// DeleteTag removes a tag by id.
func (r *FileRepository) DeleteTag(_ context.Context, tagID int) error {
	return mutate(&r.mu, r.tagsPath, func(tags []domain.Tag) ([]domain.Tag, error) {
		i := slices.IndexFunc(tags, sameTag(tagID))
		if i < 0 {
			return nil, fmt.Errorf("tag %d: %w", tagID, ErrNotFound)
		}

		return slices.Delete(tags, i, i+1), nil
	})
}

// CreateAnchor appends an anchor.
func (r *FileRepository) CreateAnchor(_ context.Context, anchor domain.AnchorSite) error {
	return mutate(&r.mu, r.anchorsPath, func(anchors []domain.AnchorSite) ([]domain.AnchorSite, error) {
		if slices.ContainsFunc(anchors, sameAnchor(anchor.AnchorID)) {
			return nil, fmt.Errorf("anchor %q: %w", anchor.AnchorID, ErrAlreadyExists)
		}

		return append(anchors, anchor), nil
	})
}

// UpdateAnchor replaces an anchor by id.
func (r *FileRepository) UpdateAnchor(_ context.Context, anchor domain.AnchorSite) error {
	return mutate(&r.mu, r.anchorsPath, func(anchors []domain.AnchorSite) ([]domain.AnchorSite, error) {
		i := slices.IndexFunc(anchors, sameAnchor(anchor.AnchorID))
		if i < 0 {
			return nil, fmt.Errorf("anchor %q: %w", anchor.AnchorID, ErrNotFound)
		}

		anchors[i] = anchor

		return anchors, nil
	})
}

// DeleteAnchor removes an anchor by id.
func (r *FileRepository) DeleteAnchor(_ context.Context, anchorID string) error {
	return mutate(&r.mu, r.anchorsPath, func(anchors []domain.AnchorSite) ([]domain.AnchorSite, error) {
		i := slices.IndexFunc(anchors, sameAnchor(anchorID))
		if i < 0 {
			return nil, fmt.Errorf("anchor %q: %w", anchorID, ErrNotFound)
		}

		return slices.Delete(anchors, i, i+1), nil
	})
}

// Close is a no-op for files.
func (r *FileRepository) Close() error {
	return nil
}

func sameTag(tagID int) func(domain.Tag) bool {
	return func(t domain.Tag) bool { return t.TagID == tagID }
}

func sameAnchor(anchorID string) func(domain.AnchorSite) bool {
	return func(a domain.AnchorSite) bool { return a.AnchorID == anchorID }
}

// readList decodes a JSON array, treating a missing file as empty.
func readList[T any](path string) ([]T, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []T{}, nil
		}

		return nil, fmt.Errorf("read roster file: %w", err)
	}

	var items []T
	if err = json.Unmarshal(contents, &items); err != nil {
		return nil, fmt.Errorf("decode roster file %s: %w", path, err)
	}

	if items == nil {
		items = []T{}
	}

	return items, nil
}

// writeList encodes items through a temporary file so watchers never see a
// half-written list.
func writeList[T any](path string, items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write roster file: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace roster file: %w", err)
	}

	return nil
}

// mutate runs a read-modify-write cycle on one list under mu.
func mutate[T any](mu *sync.Mutex, path string, change func([]T) ([]T, error)) error {
	mu.Lock()
	defer mu.Unlock()

	items, err := readList[T](path)
	if err != nil {
		return err
	}

	items, err = change(items)
	if err != nil {
		return err
	}

	return writeList(path, items)
}

var _ Repository = (*FileRepository)(nil)
