package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/opennews/newsbox/internal/utils"
)

const (
	metadataDir = ".newsbox"
	scratchDir  = "tmp"
	lockFile    = "newsbox.lock"
)

var (
	ErrCacheLocked = errors.New("cache locked by another process")
)

// Cache is the on-device cache root the sync engine mirrors the server into.
// Exactly one process may hold the cache at a time; in-progress downloads live
// in a scratch area under the metadata dir so their names can never collide
// with managed names.
type Cache struct {
	Root        string
	MetadataDir string
	ScratchDir  string

	flock *flock.Flock
}

// New creates a cache handle rooted at rootDir. The directory is not touched
// until Setup is called.
func New(rootDir string) (*Cache, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root %q: %w", rootDir, err)
	}

	metaDir := filepath.Join(root, metadataDir)

	return &Cache{
		Root:        root,
		MetadataDir: metaDir,
		ScratchDir:  filepath.Join(metaDir, scratchDir),
		flock:       flock.New(filepath.Join(metaDir, lockFile)),
	}, nil
}

// Setup creates the cache directories and takes the single-writer lock.
func (c *Cache) Setup() error {
	for _, dir := range []string{c.Root, c.MetadataDir, c.ScratchDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if err := c.Lock(); err != nil {
		return err
	}

	slog.Info("cache", "root", c.Root)
	return nil
}

// Lock takes the cache lock file so other newsbox instances cannot run a pass
// against the same root.
func (c *Cache) Lock() error {
	if err := utils.EnsureDir(c.MetadataDir); err != nil {
		return fmt.Errorf("create directory %s: %w", c.MetadataDir, err)
	}

	locked, err := c.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return ErrCacheLocked
	}

	return nil
}

// Unlock releases the cache lock if this process holds it.
func (c *Cache) Unlock() error {
	if !c.flock.Locked() {
		return nil
	}

	if err := c.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock cache: %w", err)
	}

	return os.Remove(c.flock.Path())
}

// AbsPath returns the absolute path of a cache item by its manifest name.
func (c *Cache) AbsPath(name string) string {
	return filepath.Join(c.Root, name)
}
