package sync

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/opennews/newsbox/internal/client/cache"
	"github.com/opennews/newsbox/internal/newsapi"
)

// Inventory is the planner's view of the local cache. Names is the flat
// listing of the cache root; fingerprints are computed on demand.
type Inventory interface {
	Names() []string
	Fingerprint(name string) (string, bool)
	IsDir(name string) bool
}

type scannedInventory struct {
	names   []string
	scanner *cache.Scanner
}

// NewInventory wraps a completed root scan and its scanner as an Inventory.
func NewInventory(names []string, scanner *cache.Scanner) Inventory {
	return &scannedInventory{names: names, scanner: scanner}
}

func (s *scannedInventory) Names() []string { return s.names }

func (s *scannedInventory) Fingerprint(name string) (string, bool) {
	return s.scanner.Fingerprint(name)
}

func (s *scannedInventory) IsDir(name string) bool { return s.scanner.IsDir(name) }

// PlannerPolicy tunes how a changed document pairs with its image directory.
type PlannerPolicy struct {
	// ForceFullRefresh wipes a paired directory even when it already exists
	// locally, instead of topping it up incrementally.
	ForceFullRefresh bool
}

// Planner turns a server manifest and a local inventory into a SyncPlan. It
// never fails: unreadable local files plan as re-fetches, and unrecognized
// descriptor kinds are skipped with a warning.
type Planner struct {
	policy PlannerPolicy
}

func NewPlanner(policy PlannerPolicy) *Planner {
	return &Planner{policy: policy}
}

// Plan produces the ordered action list reconciling inv with manifest.
func (p *Planner) Plan(manifest *newsapi.ManifestSnapshot, inv Inventory) *SyncPlan {
	plan := &SyncPlan{Version: manifest.Version}

	localNames := mapset.NewThreadUnsafeSet(inv.Names()...)
	declared := mapset.NewThreadUnsafeSet[string]()
	for _, desc := range manifest.Files {
		declared.Add(desc.Name)
	}

	// staleness pass: managed local items the server no longer declares.
	// Unmanaged names sharing the cache root are never touched.
	for _, name := range inv.Names() {
		if !declared.Contains(name) && cache.IsManagedName(name) {
			plan.Actions = append(plan.Actions, &PlannedAction{Type: ActionDeleteStale, Name: name})
		}
	}

	// document pass, in manifest order, pairing each document with its
	// declared image directory
	queuedDirs := mapset.NewThreadUnsafeSet[string]()
	for _, desc := range manifest.Files {
		switch {
		case desc.IsDocument():
			changed := p.documentChanged(desc, localNames, inv)
			if changed {
				plan.Actions = append(plan.Actions, &PlannedAction{Type: ActionReplaceDocument, Name: desc.Name, MD5: desc.MD5})
			}

			dirName, ok := cache.ImageDirForDocument(desc.Name)
			if !ok || !declared.Contains(dirName) {
				continue
			}

			dirExists := localNames.Contains(dirName) && inv.IsDir(dirName)
			var dirAction ActionType
			switch {
			case !dirExists:
				// brand new document, or a present name that is not
				// actually a directory: start from scratch
				if changed {
					dirAction = ActionRefreshFull
				} else {
					dirAction = ActionRefreshIncremental
				}
			case changed && p.policy.ForceFullRefresh:
				dirAction = ActionRefreshFull
			default:
				// directory contents are additive; top up whatever the
				// member diff says is missing
				dirAction = ActionRefreshIncremental
			}
			plan.Actions = append(plan.Actions, &PlannedAction{Type: dirAction, Name: dirName})
			queuedDirs.Add(dirName)

		case desc.IsImages():
			// handled by the safety net below

		default:
			slog.Warn("plan: unrecognized descriptor kind", "name", desc.Name, "kind", desc.Kind)
		}
	}

	// directory existence safety net: a declared directory the document pass
	// did not queue is never silently skipped
	for _, desc := range manifest.Files {
		if !desc.IsImages() || queuedDirs.Contains(desc.Name) {
			continue
		}
		if !localNames.Contains(desc.Name) || !inv.IsDir(desc.Name) {
			plan.Actions = append(plan.Actions, &PlannedAction{Type: ActionRefreshFull, Name: desc.Name})
		}
	}

	return plan
}

// documentChanged decides whether a declared document needs a re-fetch. A
// missing fingerprint on either side forces the fetch - never a silent skip
// of possibly stale data.
func (p *Planner) documentChanged(desc *newsapi.FileDescriptor, localNames mapset.Set[string], inv Inventory) bool {
	if !localNames.Contains(desc.Name) {
		return true
	}
	if desc.MD5 == "" {
		return true
	}
	fingerprint, ok := inv.Fingerprint(desc.Name)
	if !ok {
		return true
	}
	return fingerprint != desc.MD5
}
