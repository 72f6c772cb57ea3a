package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"khome/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "khome.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestActorRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.SaveActor(ctx, 0, `{"type":"resend","data":{"src":"n1","src_mdl":"dht"}}`)
	if err != nil {
		t.Fatalf("SaveActor insert failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected assigned actor id")
	}

	if _, err := s.SaveActor(ctx, id, `{"type":"resend","data":{"src":"n2"}}`); err != nil {
		t.Fatalf("SaveActor update failed: %v", err)
	}

	records, err := s.LoadActors(ctx)
	if err != nil {
		t.Fatalf("LoadActors failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("unexpected records: %#v", records)
	}
	if records[0].Config != `{"type":"resend","data":{"src":"n2"}}` {
		t.Fatalf("update not applied: %s", records[0].Config)
	}

	if err := s.DeleteActor(ctx, id); err != nil {
		t.Fatalf("DeleteActor failed: %v", err)
	}
	records, err = s.LoadActors(ctx)
	if err != nil {
		t.Fatalf("LoadActors failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty actor table, got %#v", records)
	}
}

func TestModuleNameUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	name, err := s.ModuleName(ctx, "node1", "dht")
	if err != nil {
		t.Fatalf("ModuleName failed: %v", err)
	}
	if name != "" {
		t.Fatalf("expected empty name, got %q", name)
	}

	if err := s.SetModuleName(ctx, "node1", "dht", "Living Room"); err != nil {
		t.Fatalf("SetModuleName failed: %v", err)
	}
	if err := s.SetModuleName(ctx, "node1", "dht", "Bedroom"); err != nil {
		t.Fatalf("SetModuleName upsert failed: %v", err)
	}

	name, err = s.ModuleName(ctx, "node1", "dht")
	if err != nil {
		t.Fatalf("ModuleName failed: %v", err)
	}
	if name != "Bedroom" {
		t.Fatalf("expected upserted name, got %q", name)
	}

	if err := s.ForgetModule(ctx, "node1", "dht"); err != nil {
		t.Fatalf("ForgetModule failed: %v", err)
	}
	name, err = s.ModuleName(ctx, "node1", "dht")
	if err != nil {
		t.Fatalf("ModuleName failed: %v", err)
	}
	if name != "" {
		t.Fatalf("expected name removed, got %q", name)
	}
}

func TestReadingsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, value := range []string{"20.1", "20.4", "20.9"} {
		if err := s.AppendReading(ctx, "node1/dht", value); err != nil {
			t.Fatalf("AppendReading failed: %v", err)
		}
	}

	readings, err := s.RecentReadings(ctx, "node1/dht", 2)
	if err != nil {
		t.Fatalf("RecentReadings failed: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if readings[0].Value != "20.9" || readings[1].Value != "20.4" {
		t.Fatalf("unexpected ordering: %#v", readings)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "khome.db")
	s, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s, err = store.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	_ = s.Close()
}
