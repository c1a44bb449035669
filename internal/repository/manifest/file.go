package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/oshokin/release-publisher/internal/config"
	domain "github.com/oshokin/release-publisher/internal/domain/manifest"
)

// Repository defines persistence operations for manifests addressed by file name.
type Repository interface {
	Load(ctx context.Context, name string) (*domain.Manifest, error)
	Save(ctx context.Context, name string, m *domain.Manifest) error
}

// FileRepository persists manifests as JSON files on a billy filesystem.
type FileRepository struct {
	// fs is the filesystem holding manifest files.
	fs billy.Filesystem
	// mu protects concurrent access to manifest files.
	mu sync.Mutex
}

// ErrNotFound is returned when the manifest file does not exist yet.
var ErrNotFound = errors.New("manifest not found")

// NewFileRepository creates a repository that reads/writes manifests on fs.
func NewFileRepository(fs billy.Filesystem) *FileRepository {
	return &FileRepository{
		fs: fs,
	}
}

// Load reads and parses a manifest.
func (r *FileRepository) Load(_ context.Context, name string) (*domain.Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := util.ReadFile(r.fs, filepath.Clean(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read manifest file: %w", err)
	}

	m, err := domain.Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("decode manifest file %s: %w", name, err)
	}

	return m, nil
}

// Save writes the manifest, creating parent directories as needed.
func (r *FileRepository) Save(_ context.Context, name string, m *domain.Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = filepath.Clean(name)

	if dir := filepath.Dir(name); dir != "." {
		if err := r.fs.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
			return fmt.Errorf("create manifest directory: %w", err)
		}
	}

	if err := util.WriteFile(r.fs, name, m.Bytes(), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest file: %w", err)
	}

	return nil
}
