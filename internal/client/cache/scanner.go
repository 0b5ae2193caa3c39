package cache

import (
	"crypto/md5"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fingerprint chunk size. Files are folded through the hash in bounded reads
// so a large issue document never has to fit in memory.
const hashChunkSize = 256 * 1024

// Scanner derives the local inventory from the cache root. The filesystem is
// the source of truth: nothing here is persisted between passes.
type Scanner struct {
	root string
}

// NewScanner creates a scanner over the cache root.
func NewScanner(root string) *Scanner {
	return &Scanner{root: root}
}

// ListNames enumerates the immediate children of the cache root, sorted.
// The metadata dir and other dotfiles are not part of the inventory.
func (s *Scanner) ListNames() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan cache root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return names, nil
}

// Fingerprint streams the named file through MD5 and returns the hex digest.
// The second return is false when the file cannot be read - the planner treats
// an unobtainable fingerprint as "differs", failing safe toward a re-fetch.
func (s *Scanner) Fingerprint(name string) (string, bool) {
	file, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		slog.Warn("fingerprint open", "name", name, "error", err)
		return "", false
	}
	defer file.Close()

	hash := md5.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(hash, file, buf); err != nil {
		slog.Warn("fingerprint read", "name", name, "error", err)
		return "", false
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), true
}

// IsDir reports whether the named cache item exists and is a directory.
func (s *Scanner) IsDir(name string) bool {
	info, err := os.Stat(filepath.Join(s.root, name))
	return err == nil && info.IsDir()
}

// DirMembers lists the immediate members of a local cache directory, sorted.
// A missing directory yields an empty list, not an error.
func (s *Scanner) DirMembers(name string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan directory %q: %w", name, err)
	}

	members := make([]string, 0, len(entries))
	for _, entry := range entries {
		members = append(members, entry.Name())
	}
	sort.Strings(members)

	return members, nil
}
