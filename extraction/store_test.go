package extraction

import (
	"testing"

	qtest "github.com/anuraag-saini/fireqsp-share-sub000/internal/testing"
)

func TestCreateAndGetExtraction(t *testing.T) {
	db := qtest.CreateTestDB(t)
	store := NewStore(db)

	e := New("owner-1")
	e.Title = "IPF mechanism map"
	e.DiseaseType = "pulmonary fibrosis"
	e.References["paper.txt"] = "Smith et al., 2024"

	if err := store.Create(e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(e.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("expected processing status, got %s", got.Status)
	}
	if got.References["paper.txt"] != "Smith et al., 2024" {
		t.Errorf("references round-trip failed: %v", got.References)
	}
	if got.InteractionCount != 0 {
		t.Errorf("expected zero interaction count, got %d", got.InteractionCount)
	}
}

func TestBulkInsertSkipsInvalidInteractions(t *testing.T) {
	db := qtest.CreateTestDB(t)
	store := NewStore(db)

	e := New("owner-1")
	if err := store.Create(e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	items := []Interaction{
		{
			Mechanism:  "TGF-beta induces fibroblast activation",
			Source:     Entity{Name: "TGF-beta", Level: LevelMolecular},
			Target:     Entity{Name: "fibroblast", Level: LevelCellular},
			Type:       TypeActivation,
			Confidence: ConfidenceHigh,
			SourceFile: "paper.txt",
		},
		{
			// Missing target name: must be dropped, not stored half-populated
			Mechanism:  "unknown target",
			Source:     Entity{Name: "IL-6", Level: LevelMolecular},
			Type:       TypeUpregulation,
			Confidence: ConfidenceLow,
		},
	}

	inserted, err := store.BulkInsertInteractions(e.ID, items)
	if err != nil {
		t.Fatalf("BulkInsertInteractions failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", inserted)
	}

	count, err := store.CountInteractions(e.ID)
	if err != nil {
		t.Fatalf("CountInteractions failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 interaction row, got %d", count)
	}
}

func TestRefreshInteractionCountIsDerived(t *testing.T) {
	db := qtest.CreateTestDB(t)
	store := NewStore(db)

	e := New("owner-1")
	if err := store.Create(e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	items := []Interaction{
		{Mechanism: "m1", Source: Entity{Name: "A"}, Target: Entity{Name: "B"}, Type: TypeBinding, Confidence: ConfidenceMedium},
		{Mechanism: "m2", Source: Entity{Name: "B"}, Target: Entity{Name: "C"}, Type: TypeInhibition, Confidence: ConfidenceMedium},
	}
	if _, err := store.BulkInsertInteractions(e.ID, items); err != nil {
		t.Fatalf("BulkInsertInteractions failed: %v", err)
	}

	count, err := store.RefreshInteractionCount(e.ID)
	if err != nil {
		t.Fatalf("RefreshInteractionCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}

	got, err := store.Get(e.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.InteractionCount != 2 {
		t.Errorf("cached interaction_count not refreshed: got %d", got.InteractionCount)
	}
}

func TestDeleteCascadesInteractions(t *testing.T) {
	db := qtest.CreateTestDB(t)
	store := NewStore(db)

	e := New("owner-1")
	if err := store.Create(e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	items := []Interaction{
		{Mechanism: "m", Source: Entity{Name: "A"}, Target: Entity{Name: "B"}, Type: TypeTransport, Confidence: ConfidenceHigh},
	}
	if _, err := store.BulkInsertInteractions(e.ID, items); err != nil {
		t.Fatalf("BulkInsertInteractions failed: %v", err)
	}

	if err := store.Delete(e.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected interactions to cascade on delete, found %d rows", count)
	}
}

func TestInteractionValidation(t *testing.T) {
	valid := Interaction{Mechanism: "m", Source: Entity{Name: "A"}, Target: Entity{Name: "B"}}
	if !valid.Valid() {
		t.Error("expected interaction with mechanism/source/target to be valid")
	}

	missing := Interaction{Mechanism: "m", Source: Entity{Name: "A"}}
	if missing.Valid() {
		t.Error("expected interaction without target name to be invalid")
	}

	if ValidInteractionType("sorcery") {
		t.Error("unexpected interaction type accepted")
	}
	if !ValidInteractionType(TypeDownregulation) {
		t.Error("downregulation should be a valid interaction type")
	}
}
