package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"layout-server/core"
)

func TestNewWorkspaceStore(t *testing.T) {
	store := NewWorkspaceStore()
	if store == nil {
		t.Fatal("NewWorkspaceStore() returned nil")
	}
}

func TestSaveAndGet(t *testing.T) {
	store := NewWorkspaceStore()
	ctx := context.Background()

	ws := &core.Workspace{ID: "ws-1", OwnerID: "alice", Name: "Office", ItemCount: 2, Data: []byte(`{"items":[]}`)}
	if err := store.Save(ctx, ws); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if ws.CreatedAt.IsZero() || ws.UpdatedAt.IsZero() {
		t.Error("Save() did not set timestamps")
	}

	got, err := store.Get(ctx, "alice", "ws-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got.Data) != `{"items":[]}` {
		t.Errorf("Get() data mismatch: got %q", got.Data)
	}
	if got.Name != "Office" || got.ItemCount != 2 {
		t.Errorf("Get() metadata mismatch: %+v", got)
	}

	got.Data[0] = 'X'
	again, _ := store.Get(ctx, "alice", "ws-1")
	if again.Data[0] != '{' {
		t.Error("Get() returned shared data buffer")
	}
}

func TestGet_NotFound(t *testing.T) {
	store := NewWorkspaceStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "alice", "nope")
	if !errors.Is(err, core.ErrWorkspaceNotFound) {
		t.Errorf("Get() error = %v, want ErrWorkspaceNotFound", err)
	}
}

func TestGet_OwnerScoped(t *testing.T) {
	store := NewWorkspaceStore()
	ctx := context.Background()

	if err := store.Save(ctx, &core.Workspace{ID: "ws-1", OwnerID: "alice"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := store.Get(ctx, "bob", "ws-1"); err == nil {
		t.Error("Get() should not return another owner's workspace")
	}
}

func TestSave_PreservesCreatedAt(t *testing.T) {
	s := NewWorkspaceStore().(*workspaceStore)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	if err := s.Save(ctx, &core.Workspace{ID: "ws-1", OwnerID: "alice"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	clock = clock.Add(time.Hour)
	ws := &core.Workspace{ID: "ws-1", OwnerID: "alice", Data: []byte("v2")}
	if err := s.Save(ctx, ws); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, _ := s.Get(ctx, "alice", "ws-1")
	if !got.CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt changed on update: %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(clock) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, clock)
	}
}

func TestSave_EmptyID(t *testing.T) {
	store := NewWorkspaceStore()
	if err := store.Save(context.Background(), &core.Workspace{OwnerID: "alice"}); err == nil {
		t.Error("Save() should reject an empty id")
	}
}

func TestList(t *testing.T) {
	s := NewWorkspaceStore().(*workspaceStore)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		ws := &core.Workspace{ID: fmt.Sprintf("ws-%d", i), OwnerID: "alice", Data: []byte("data")}
		if err := s.Save(ctx, ws); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	list, err := s.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() returned %d workspaces, want 3", len(list))
	}
	if list[0].ID != "ws-2" || list[2].ID != "ws-0" {
		t.Errorf("List() not ordered by most recent update: %s, %s", list[0].ID, list[2].ID)
	}
	for _, ws := range list {
		if ws.Data != nil {
			t.Errorf("List() included data for %s", ws.ID)
		}
	}

	empty, err := s.List(ctx, "bob")
	if err != nil || len(empty) != 0 {
		t.Errorf("List() for unknown owner = %v, %v", empty, err)
	}
}

func TestDelete(t *testing.T) {
	store := NewWorkspaceStore()
	ctx := context.Background()

	if err := store.Save(ctx, &core.Workspace{ID: "ws-1", OwnerID: "alice"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Delete(ctx, "alice", "ws-1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(ctx, "alice", "ws-1"); err == nil {
		t.Error("Get() after Delete() should fail")
	}
	if err := store.Delete(ctx, "alice", "ws-1"); !errors.Is(err, core.ErrWorkspaceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrWorkspaceNotFound", err)
	}
}

func TestConcurrentSave(t *testing.T) {
	store := NewWorkspaceStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			ws := &core.Workspace{ID: fmt.Sprintf("ws-%d", index), OwnerID: "alice"}
			if err := store.Save(ctx, ws); err != nil {
				t.Errorf("Concurrent Save() failed: %v", err)
			}
			if _, err := store.Get(ctx, "alice", ws.ID); err != nil {
				t.Errorf("Concurrent Get() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	list, _ := store.List(ctx, "alice")
	if len(list) != 10 {
		t.Errorf("Expected 10 workspaces, got %d", len(list))
	}
}
