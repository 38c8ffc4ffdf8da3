package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chatlift/guidedflow/internal/graph"
	"github.com/chatlift/guidedflow/internal/models"
	"github.com/chatlift/guidedflow/internal/store"
	"github.com/chatlift/guidedflow/internal/testutil"
)

const testOwner = "shop_42"

// seedSession seeds an in-memory store with the shared fixture graph and opens
// a session on the named flow.
func seedSession(t *testing.T, flowName string) (*Session, store.Store, *graph.Model) {
	t.Helper()
	ctx := context.Background()
	st := store.NewInMemoryStore()
	if err := st.ReplaceAll(ctx, testOwner, testutil.SeedFlows()); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	flows, err := st.ListFlows(ctx, testOwner)
	if err != nil {
		t.Fatalf("failed to list flows: %v", err)
	}
	m, err := graph.NewModel(flows)
	if err != nil {
		t.Fatalf("failed to build model: %v", err)
	}
	s, err := NewSession(st, testOwner, m, flowName)
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	return s, st, m
}

func assertContiguousOrder(t *testing.T, f models.Flow) {
	t.Helper()
	if err := f.ValidateOrder(); err != nil {
		orders := make([]int, len(f.Options))
		for i, o := range f.Options {
			orders[i] = o.Order
		}
		t.Fatalf("order invariant broken: %v (orders %v)", err, orders)
	}
}

func TestNewSession_UnknownFlow(t *testing.T) {
	_, _, m := seedSession(t, models.MainFlowName)
	if _, err := NewSession(store.NewInMemoryStore(), testOwner, m, "nonexistent"); !errors.Is(err, models.ErrUnknownFlow) {
		t.Errorf("expected ErrUnknownFlow, got %v", err)
	}
}

func TestAddOption_Defaults(t *testing.T) {
	s, _, _ := seedSession(t, "sizing")

	opt := s.AddOption()
	if opt.Action != models.ActionNextFlow {
		t.Errorf("expected NEXT_FLOW default action, got %s", opt.Action)
	}
	if opt.NextFlow != nil {
		t.Error("new option should not target a flow yet")
	}
	if !strings.HasPrefix(opt.ID, TempIDPrefix) {
		t.Errorf("expected temporary id, got %q", opt.ID)
	}
	if opt.Order != 1 {
		t.Errorf("expected next contiguous order 1, got %d", opt.Order)
	}
	assertContiguousOrder(t, s.Staged())
}

func TestRemoveOption_Renumbers(t *testing.T) {
	s, _, _ := seedSession(t, models.MainFlowName)

	if err := s.RemoveOption("opt_contact"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	staged := s.Staged()
	if len(staged.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(staged.Options))
	}
	assertContiguousOrder(t, staged)

	if err := s.RemoveOption("nonexistent"); !errors.Is(err, models.ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got %v", err)
	}
}

func TestMoveOption_SwapsAndRenumbers(t *testing.T) {
	s, _, _ := seedSession(t, models.MainFlowName)

	s.MoveOption(0, MoveDown)
	staged := s.Staged()
	if staged.Options[0].ID != "opt_contact" || staged.Options[1].ID != "opt_sizing" {
		t.Errorf("expected swap of first two options, got %s, %s", staged.Options[0].ID, staged.Options[1].ID)
	}
	assertContiguousOrder(t, staged)
}

func TestMoveOption_BoundaryNoOp(t *testing.T) {
	s, _, _ := seedSession(t, models.MainFlowName)
	before := s.Staged()

	s.MoveOption(0, MoveUp)
	s.MoveOption(len(before.Options)-1, MoveDown)
	s.MoveOption(-1, MoveDown)
	s.MoveOption(42, MoveUp)

	after := s.Staged()
	for i := range before.Options {
		if before.Options[i].ID != after.Options[i].ID {
			t.Fatalf("boundary move changed option order: %v", after.Options)
		}
	}
	assertContiguousOrder(t, after)
}

// Any add/remove/move sequence keeps orders 0..n-1.
func TestEditSequence_KeepsOrderInvariant(t *testing.T) {
	s, _, _ := seedSession(t, models.MainFlowName)

	added := s.AddOption()
	s.MoveOption(3, MoveUp)
	s.MoveOption(2, MoveUp)
	if err := s.RemoveOption("opt_sizing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.MoveOption(0, MoveDown)
	if err := s.RemoveOption(added.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertContiguousOrder(t, s.Staged())
}

func TestSetOptionAction_ClearsDependentFields(t *testing.T) {
	s, _, _ := seedSession(t, models.MainFlowName)

	// Contact option becomes NEXT_FLOW: contact fields must drop immediately.
	if err := s.SetOptionAction("opt_contact", models.ActionNextFlow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	staged := s.Staged()
	opt, _ := staged.OptionByID("opt_contact")
	if opt.RequestType != "" || opt.InputFields != nil {
		t.Errorf("contact fields not cleared: %+v", opt)
	}

	// NEXT_FLOW option becomes a contact request: the target must drop.
	if err := s.SetOptionAction("opt_sizing", models.ActionSubmitContactRequest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	staged = s.Staged()
	opt, _ = staged.OptionByID("opt_sizing")
	if opt.NextFlow != nil {
		t.Errorf("next flow not cleared on contact request option: %+v", opt)
	}

	if err := s.SetOptionAction("opt_sizing", models.ActionType("bogus")); !errors.Is(err, models.ErrInvalidActionType) {
		t.Errorf("expected ErrInvalidActionType, got %v", err)
	}
}

func TestRename_MainGuarded(t *testing.T) {
	s, _, _ := seedSession(t, models.MainFlowName)
	if err := s.Rename("welcome"); !errors.Is(err, models.ErrRenameMainFlow) {
		t.Errorf("expected ErrRenameMainFlow, got %v", err)
	}

	other, _, _ := seedSession(t, "sizing")
	if err := other.Rename("size_guide"); err != nil {
		t.Errorf("unexpected error renaming non-main flow: %v", err)
	}
}

func TestCommit_PersistsAndRefreshes(t *testing.T) {
	s, _, _ := seedSession(t, "sizing")
	ctx := context.Background()

	opt := s.AddOption()
	if err := s.SetOptionText(opt.ID, "Back soon"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetOptionIcon(opt.ID, "🕐"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetOptionBotResponse(opt.ID, &models.BotResponse{Text: "See you!"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshed, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	f, ok := refreshed.ByName("sizing")
	if !ok {
		t.Fatal("committed flow missing from refreshed model")
	}
	if len(f.Options) != 2 {
		t.Fatalf("expected 2 options after commit, got %d", len(f.Options))
	}
	for _, o := range f.Options {
		if strings.HasPrefix(o.ID, TempIDPrefix) {
			t.Errorf("temporary id survived commit: %q", o.ID)
		}
	}
}

func TestCommit_ValidationFailureLeavesGraphUntouched(t *testing.T) {
	s, st, _ := seedSession(t, "sizing")
	ctx := context.Background()

	// Close the cycle sizing -> main while main -> sizing is committed.
	opt := s.AddOption()
	if err := s.SetOptionText(opt.ID, "Back to start"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetOptionIcon(opt.ID, "🔙"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	main := models.MainFlowName
	if err := s.SetOptionNextFlow(opt.ID, &main); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := s.Commit(ctx)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), models.ErrCycleDetected.Error()) {
		t.Errorf("expected cycle violation, got %v", verr)
	}

	// The committed graph is untouched.
	flows, err := st.ListFlows(ctx, testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range flows {
		if f.Name == "sizing" && len(f.Options) != 1 {
			t.Errorf("rejected commit reached the store: %+v", f)
		}
	}
}

func TestCommit_NewFlowSession(t *testing.T) {
	_, st, m := seedSession(t, models.MainFlowName)
	ctx := context.Background()

	s := NewFlowSession(st, testOwner, m, "returns")
	staged := s.Staged()
	if !staged.Active || staged.Language != models.DefaultLanguage {
		t.Errorf("new flow defaults wrong: %+v", staged)
	}

	refreshed, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	f, ok := refreshed.ByName("returns")
	if !ok {
		t.Fatal("new flow missing from refreshed model")
	}
	if f.ID == "" || f.Version != 1 {
		t.Errorf("new flow not assigned id/version: %+v", f)
	}
}

func TestCommit_FirstFlowMustBeMain(t *testing.T) {
	st := store.NewInMemoryStore()
	empty, err := graph.NewModel(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := NewFlowSession(st, testOwner, empty, "sizing")
	_, err = s.Commit(context.Background())
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), models.ErrFirstFlowNotMain.Error()) {
		t.Errorf("expected first-flow violation, got %v", verr)
	}
}
