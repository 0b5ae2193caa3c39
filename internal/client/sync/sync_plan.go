package sync

import (
	"fmt"
)

// ActionType identifies one kind of planned sync action.
type ActionType string

const (
	// ActionDeleteStale removes a managed local item no longer declared by the server.
	ActionDeleteStale ActionType = "DeleteStale"
	// ActionReplaceDocument fetches a document that is missing locally or whose fingerprint differs.
	ActionReplaceDocument ActionType = "ReplaceDocument"
	// ActionRefreshFull wipes and re-fetches an entire directory.
	ActionRefreshFull ActionType = "RefreshDirectoryFull"
	// ActionRefreshIncremental fetches only the directory members absent locally.
	ActionRefreshIncremental ActionType = "RefreshDirectoryIncremental"
)

// PlannedAction is one step of a sync plan.
type PlannedAction struct {
	Type ActionType
	Name string
	MD5  string // declared fingerprint, set for documents only
}

func (a *PlannedAction) String() string {
	return fmt.Sprintf("%s(%s)", a.Type, a.Name)
}

// Describe returns the human-readable progress message for the action.
func (a *PlannedAction) Describe() string {
	switch a.Type {
	case ActionDeleteStale:
		return "removing " + a.Name
	case ActionReplaceDocument:
		return "downloading " + a.Name
	case ActionRefreshFull, ActionRefreshIncremental:
		return "refreshing " + a.Name
	default:
		return a.Name
	}
}

// SyncPlan is the ordered list of actions reconciling the local cache with a
// manifest: deletions first, then document/directory pairs in manifest order,
// then safety-net directory refreshes.
type SyncPlan struct {
	Version string
	Actions []*PlannedAction
}

// UpToDate reports whether the plan has no work at all.
func (p *SyncPlan) UpToDate() bool {
	return len(p.Actions) == 0
}
