package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chatlift/guidedflow/internal/models"
)

const testOwner = "shop_42"

func sampleFlow(name string) models.Flow {
	return models.Flow{
		Name:     name,
		Language: models.DefaultLanguage,
		Active:   true,
		Options: []models.Option{
			{ID: "tmp-abc123", Text: "Continue", Icon: "▶", Order: 0, Action: models.ActionNextFlow, NextFlow: nil},
		},
	}
}

func TestInMemoryStore_SaveAssignsDurableIDs(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	saved, err := st.SaveFlow(ctx, testOwner, sampleFlow("main"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID == "" {
		t.Error("expected flow id to be assigned")
	}
	if saved.Version != 1 {
		t.Errorf("expected version 1, got %d", saved.Version)
	}
	if strings.HasPrefix(saved.Options[0].ID, "tmp-") || saved.Options[0].ID == "" {
		t.Errorf("expected temporary option id to be replaced, got %q", saved.Options[0].ID)
	}
}

func TestInMemoryStore_VersionConflict(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	saved, err := st.SaveFlow(ctx, testOwner, sampleFlow("main"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Stale write: version 0 against a stored version 1.
	stale := saved.Clone()
	stale.Version = 0
	if _, err := st.SaveFlow(ctx, testOwner, stale); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	// Fresh write succeeds and bumps the version.
	updated, err := st.SaveFlow(ctx, testOwner, saved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
}

func TestInMemoryStore_RenameDropsOldName(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	saved, err := st.SaveFlow(ctx, testOwner, sampleFlow("sizing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	renamed := saved.Clone()
	renamed.Name = "size_guide"
	if _, err := st.SaveFlow(ctx, testOwner, renamed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flows, err := st.ListFlows(ctx, testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 1 || flows[0].Name != "size_guide" {
		t.Errorf("expected single renamed flow, got %v", flows)
	}
}

func TestInMemoryStore_ListOrder(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	for _, name := range []string{"returns", "main", "sizing"} {
		if _, err := st.SaveFlow(ctx, testOwner, sampleFlow(name)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	flows, err := st.ListFlows(ctx, testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []string{flows[0].Name, flows[1].Name, flows[2].Name}
	want := []string{"main", "returns", "sizing"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestInMemoryStore_DeleteFlow(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	if err := st.DeleteFlow(ctx, testOwner, "missing"); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("expected ErrFlowNotFound, got %v", err)
	}

	if _, err := st.SaveFlow(ctx, testOwner, sampleFlow("sizing")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.DeleteFlow(ctx, testOwner, "sizing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flows, _ := st.ListFlows(ctx, testOwner)
	if len(flows) != 0 {
		t.Errorf("expected empty store after delete, got %v", flows)
	}
}

func TestInMemoryStore_ReplaceAll(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	if _, err := st.SaveFlow(ctx, testOwner, sampleFlow("old")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := st.ReplaceAll(ctx, testOwner, []models.Flow{sampleFlow("main"), sampleFlow("sizing")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flows, _ := st.ListFlows(ctx, testOwner)
	if len(flows) != 2 {
		t.Fatalf("expected 2 flows after import, got %d", len(flows))
	}
	for _, f := range flows {
		if f.Name == "old" {
			t.Error("ReplaceAll left a pre-import flow behind")
		}
		if f.Version != 1 {
			t.Errorf("imported flow %s should start at version 1, got %d", f.Name, f.Version)
		}
	}
}

func TestInMemoryStore_OwnersIsolated(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	if _, err := st.SaveFlow(ctx, "owner_a", sampleFlow("main")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flows, err := st.ListFlows(ctx, "owner_b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 0 {
		t.Errorf("expected no flows for other owner, got %v", flows)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "guidedflow.db")
	st, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	flow := sampleFlow("main")
	flow.Options = append(flow.Options, models.Option{
		ID: "tmp-contact", Text: "Contact us", Icon: "✉️", Order: 1,
		Action:      models.ActionSubmitContactRequest,
		RequestType: models.RequestTypeGeneral,
		InputFields: []models.InputField{models.InputFieldEmail, models.InputFieldMessage},
	})

	saved, err := st.SaveFlow(ctx, testOwner, flow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Version != 1 {
		t.Errorf("expected version 1, got %d", saved.Version)
	}

	flows, err := st.ListFlows(ctx, testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(flows))
	}
	got := flows[0]
	if got.Name != "main" || !got.Active || got.Language != models.DefaultLanguage {
		t.Errorf("flow attributes not round-tripped: %+v", got)
	}
	if len(got.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(got.Options))
	}
	if got.Options[1].RequestType != models.RequestTypeGeneral || len(got.Options[1].InputFields) != 2 {
		t.Errorf("contact option not round-tripped: %+v", got.Options[1])
	}

	// Stale save is rejected.
	stale := saved.Clone()
	stale.Version = 0
	if _, err := st.SaveFlow(ctx, testOwner, stale); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	if err := st.DeleteFlow(ctx, testOwner, "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.DeleteFlow(ctx, testOwner, "main"); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("expected ErrFlowNotFound, got %v", err)
	}
}

func TestSQLiteStore_ReplaceAll(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "guidedflow.db")
	st, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	if _, err := st.SaveFlow(ctx, testOwner, sampleFlow("old")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.ReplaceAll(ctx, testOwner, []models.Flow{sampleFlow("main"), sampleFlow("sizing")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flows, err := st.ListFlows(ctx, testOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 2 || flows[0].Name != "main" || flows[1].Name != "sizing" {
		t.Errorf("unexpected flows after import: %v", flows)
	}
}
