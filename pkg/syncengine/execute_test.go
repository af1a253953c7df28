package syncengine

import "testing"

func TestOrderActionsDirectoriesFirstThenDepthThenDeletes(t *testing.T) {
	actions := []PlanAction{
		{Kind: ActionDelete, VirtualPath: "z.txt", Depth: 0},
		{Kind: ActionCopy, VirtualPath: "a/b.txt", Depth: 1},
		{Kind: ActionCreateDirectory, VirtualPath: "a", Depth: 0},
		{Kind: ActionCopy, VirtualPath: "c.txt", Depth: 0},
	}
	ordered := orderActions(actions)

	if ordered[0].Kind != ActionCreateDirectory {
		t.Fatalf("expected directory first, got %+v", ordered[0])
	}
	if ordered[len(ordered)-1].Kind != ActionDelete {
		t.Fatalf("expected delete last, got %+v", ordered[len(ordered)-1])
	}
}

func TestConflictsWithAnySameDestination(t *testing.T) {
	a := PlanAction{DestinationPath: "/dst/a.txt"}
	b := PlanAction{DestinationPath: "/dst/a.txt"}
	if !conflictsWithAny(a, []PlanAction{b}) {
		t.Error("expected actions sharing a destination path to conflict")
	}
}

func TestConflictsWithAnyParentChild(t *testing.T) {
	parent := PlanAction{DestinationPath: "/dst/dir"}
	child := PlanAction{DestinationPath: "/dst/dir/file.txt"}
	if !conflictsWithAny(child, []PlanAction{parent}) {
		t.Error("expected parent/child destination paths to conflict")
	}
}

func TestConflictsWithAnyUnrelatedPaths(t *testing.T) {
	a := PlanAction{DestinationPath: "/dst/a.txt"}
	b := PlanAction{DestinationPath: "/dst/b.txt"}
	if conflictsWithAny(a, []PlanAction{b}) {
		t.Error("expected unrelated destination paths not to conflict")
	}
}

func TestPackWavesSeparatesConflictingActions(t *testing.T) {
	actions := []PlanAction{
		{Kind: ActionCopy, DestinationPath: "/dst/a.txt"},
		{Kind: ActionCopy, DestinationPath: "/dst/a.txt"},
		{Kind: ActionCopy, DestinationPath: "/dst/b.txt"},
	}
	groups := packWaves(actions)
	if len(groups) != 2 {
		t.Fatalf("expected 2 wave groups, got %d", len(groups))
	}
}
