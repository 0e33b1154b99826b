package memory

import (
	"testing"
)

func TestSaveLoadCycle(t *testing.T) {
	fs := NewFileStore(t.TempDir())

	rec := &Record{
		Mode:    "conversation",
		Context: "we were discussing the weather",
		Interactions: []Interaction{
			NewInteraction("user", "what's the forecast?"),
			NewInteraction("assistant", "sunny, 22 degrees"),
		},
		ExitCount: 1,
	}
	if err := fs.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == "" {
		t.Error("Save should assign a record ID")
	}

	got, err := fs.Load("conversation")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil for saved mode")
	}
	if got.Context != rec.Context || got.ExitCount != 1 {
		t.Errorf("record fields lost: %+v", got)
	}
	if len(got.Interactions) != 2 {
		t.Fatalf("interactions = %d, want 2", len(got.Interactions))
	}
	if got.Interactions[1].Content != "sunny, 22 degrees" {
		t.Errorf("interaction content = %q", got.Interactions[1].Content)
	}
}

func TestSaveOverwritesPriorRecord(t *testing.T) {
	fs := NewFileStore(t.TempDir())

	if err := fs.Save(&Record{Mode: "welcome", Context: "first exit", ExitCount: 1}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Save(&Record{Mode: "welcome", Context: "second exit", ExitCount: 2}); err != nil {
		t.Fatal(err)
	}

	got, err := fs.Load("welcome")
	if err != nil {
		t.Fatal(err)
	}
	if got.Context != "second exit" || got.ExitCount != 2 {
		t.Errorf("record not overwritten: %+v", got)
	}
}

func TestLoadUnknownModeIsEmpty(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	got, err := fs.Load("never-visited")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestModesListing(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	for _, m := range []string{"welcome", "alert", "patrol"} {
		if err := fs.Save(&Record{Mode: m}); err != nil {
			t.Fatal(err)
		}
	}

	modes, err := fs.Modes()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alert", "patrol", "welcome"}
	if len(modes) != len(want) {
		t.Fatalf("modes = %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Fatalf("modes = %v, want %v", modes, want)
		}
	}
}

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}
	if err := s.Save(&Record{Mode: "welcome"}); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Load("welcome")
	if err != nil || rec != nil {
		t.Fatalf("NopStore must forget everything, got %v, %v", rec, err)
	}
}
