package manifest

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/release-publisher/internal/domain/manifest"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(memfs.New())
	m, err := repo.Load(context.Background(), "missing.json")
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, m)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns the same entries.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	repo := NewFileRepository(fs)

	want, err := domain.New().With("linux-x64-prod", domain.Entry{"version": "1.0.0", "update": "u"})
	require.NoError(t, err)
	want, err = want.With("win32-x64-prod", domain.Entry{"version": "1.0.1"})
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), "nested/dir/meta.json", want))

	got, err := repo.Load(context.Background(), "nested/dir/meta.json")
	require.NoError(t, err)
	require.Equal(t, []string{"linux-x64-prod", "win32-x64-prod"}, got.IDs())
	require.Equal(t, "1.0.1", got.Version("win32-x64-prod"))

	_, err = fs.Stat("nested/dir/meta.json")
	require.NoError(t, err)
}

// TestFileRepository_Corrupted verifies that invalid JSON is reported as a decode error.
func TestFileRepository_Corrupted(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "meta.json", []byte("[1, 2"), 0o644))

	_, err := NewFileRepository(fs).Load(context.Background(), "meta.json")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
