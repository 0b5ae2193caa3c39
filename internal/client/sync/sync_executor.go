package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/opennews/newsbox/internal/client/cache"
	"github.com/opennews/newsbox/internal/newsapi"
	"github.com/opennews/newsbox/internal/utils"
)

// ActionResult summarizes the effect of one applied action.
type ActionResult struct {
	Downloaded int  // files fetched and installed
	Failed     int  // member downloads absorbed as non-fatal
	Removed    bool // a stale item was removed
}

// Executor applies planned actions against the cache root. Every installed
// file goes through the scratch-area download with an atomic rename, so a
// concurrent reader never observes a half-written file under a real name.
type Executor struct {
	api     *newsapi.Client
	cache   *cache.Cache
	scanner *cache.Scanner
}

func NewExecutor(api *newsapi.Client, c *cache.Cache) *Executor {
	return &Executor{
		api:     api,
		cache:   c,
		scanner: cache.NewScanner(c.Root),
	}
}

// Apply executes a single planned action. An error return is fatal or not by
// the caller's policy; member-level failures inside directory refreshes are
// absorbed here and only counted.
func (e *Executor) Apply(ctx context.Context, action *PlannedAction) (*ActionResult, error) {
	switch action.Type {
	case ActionDeleteStale:
		return e.deleteStaleItem(action.Name), nil
	case ActionReplaceDocument:
		return e.replaceDocument(ctx, action)
	case ActionRefreshFull:
		return e.refreshDirectoryFull(ctx, action.Name)
	case ActionRefreshIncremental:
		return e.refreshDirectoryIncremental(ctx, action.Name)
	default:
		return nil, fmt.Errorf("apply: unknown action type %q", action.Type)
	}
}

// deleteStaleItem removes a no-longer-declared item. Best effort: a failure
// is logged and never raised, so cleanup cannot block the rest of the pass.
func (e *Executor) deleteStaleItem(name string) *ActionResult {
	path := e.cache.AbsPath(name)
	if err := os.RemoveAll(path); err != nil {
		slog.Warn("sync", "op", ActionDeleteStale, "path", name, "error", err)
		return &ActionResult{}
	}
	slog.Info("sync", "op", ActionDeleteStale, "path", name)
	return &ActionResult{Removed: true}
}

func (e *Executor) replaceDocument(ctx context.Context, action *PlannedAction) (*ActionResult, error) {
	destPath := e.cache.AbsPath(action.Name)
	err := e.api.Download(ctx, &newsapi.DownloadJob{
		RemoteName: action.Name,
		DestPath:   destPath,
		ScratchDir: e.cache.ScratchDir,
	})
	if err != nil {
		return nil, fmt.Errorf("replace document %q: %w", action.Name, err)
	}

	var size uint64
	if info, statErr := os.Stat(destPath); statErr == nil {
		size = uint64(info.Size())
	}
	slog.Info("sync", "op", ActionReplaceDocument, "path", action.Name, "size", humanize.Bytes(size))
	return &ActionResult{Downloaded: 1}, nil
}

// refreshDirectoryFull discards any local directory of that name and fetches
// every remote member into a fresh one. An empty remote member list is a
// no-op. Per-member failures are logged and skipped: a missing image is a
// degraded outcome, not a fatal one.
func (e *Executor) refreshDirectoryFull(ctx context.Context, name string) (*ActionResult, error) {
	members, err := e.api.ListFiles(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("refresh directory %q: %w", name, err)
	}
	if len(members) == 0 {
		slog.Debug("sync", "op", ActionRefreshFull, "path", name, "status", "EmptyRemote")
		return &ActionResult{}, nil
	}

	dir := e.cache.AbsPath(name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("refresh directory %q: clear: %w", name, err)
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("refresh directory %q: create: %w", name, err)
	}

	result := &ActionResult{}
	e.fetchMembers(ctx, name, members, result)
	slog.Info("sync", "op", ActionRefreshFull, "path", name, "downloaded", result.Downloaded, "failed", result.Failed)
	return result, nil
}

// refreshDirectoryIncremental fetches only the remote members absent locally,
// leaving existing members untouched.
func (e *Executor) refreshDirectoryIncremental(ctx context.Context, name string) (*ActionResult, error) {
	members, err := e.api.ListFiles(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("refresh directory %q: %w", name, err)
	}
	if len(members) == 0 {
		slog.Debug("sync", "op", ActionRefreshIncremental, "path", name, "status", "EmptyRemote")
		return &ActionResult{}, nil
	}

	localMembers, err := e.scanner.DirMembers(name)
	if err != nil {
		return nil, fmt.Errorf("refresh directory %q: %w", name, err)
	}
	present := mapset.NewThreadUnsafeSet(localMembers...)

	missing := make([]string, 0, len(members))
	for _, member := range members {
		if !present.Contains(member) {
			missing = append(missing, member)
		}
	}
	if len(missing) == 0 {
		return &ActionResult{}, nil
	}

	if err := utils.EnsureDir(e.cache.AbsPath(name)); err != nil {
		return nil, fmt.Errorf("refresh directory %q: create: %w", name, err)
	}

	result := &ActionResult{}
	e.fetchMembers(ctx, name, missing, result)
	slog.Info("sync", "op", ActionRefreshIncremental, "path", name, "downloaded", result.Downloaded, "failed", result.Failed)
	return result, nil
}

// fetchMembers downloads directory members sequentially, absorbing per-member
// failures into the result counters.
func (e *Executor) fetchMembers(ctx context.Context, dirName string, members []string, result *ActionResult) {
	dir := e.cache.AbsPath(dirName)
	for _, member := range members {
		if !validMemberName(member) {
			slog.Warn("sync", "op", "FetchMember", "dir", dirName, "member", member, "error", "invalid member name")
			result.Failed++
			continue
		}

		err := e.api.Download(ctx, &newsapi.DownloadJob{
			RemoteName: dirName + "/" + member,
			DestPath:   filepath.Join(dir, member),
			ScratchDir: e.cache.ScratchDir,
		})
		if err != nil {
			slog.Warn("sync", "op", "FetchMember", "dir", dirName, "member", member, "error", err)
			result.Failed++
			continue
		}
		result.Downloaded++
	}
}

// validMemberName rejects member names that would escape the directory.
func validMemberName(member string) bool {
	return member != "" &&
		member != "." && member != ".." &&
		!strings.ContainsAny(member, "/\\")
}
