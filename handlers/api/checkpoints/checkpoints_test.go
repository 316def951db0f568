package checkpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"layout-server/core"
	"layout-server/middleware"
	"layout-server/session"
	"layout-server/stores/memory"
	"layout-server/workspace"

	"github.com/go-chi/chi/v5"
)

// Mock checkpoint store for testing
type mockCheckpointStore struct {
	checkpoints map[string]*core.Checkpoint
	order       []string
	settings    map[string]*core.CheckpointSettings
	createErr   error
	listErr     error
	settingsErr error
}

func newMockCheckpointStore() *mockCheckpointStore {
	return &mockCheckpointStore{
		checkpoints: make(map[string]*core.Checkpoint),
		settings:    make(map[string]*core.CheckpointSettings),
	}
}

func (m *mockCheckpointStore) CreateCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	id := fmt.Sprintf("cp-%d", len(m.order))
	stored := *checkpoint
	stored.ID = id
	stored.CreatedAt = int64(len(m.order))
	m.checkpoints[id] = &stored
	m.order = append(m.order, id)
	return id, nil
}

func (m *mockCheckpointStore) ListCheckpoints(ctx context.Context, ownerID, workspaceID string) ([]core.Checkpoint, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []core.Checkpoint
	for i := len(m.order) - 1; i >= 0; i-- {
		cp, ok := m.checkpoints[m.order[i]]
		if ok && cp.OwnerID == ownerID && cp.WorkspaceID == workspaceID {
			meta := *cp
			meta.Data = nil
			result = append(result, meta)
		}
	}
	return result, nil
}

func (m *mockCheckpointStore) GetCheckpoint(ctx context.Context, ownerID, id string) (*core.Checkpoint, error) {
	cp, ok := m.checkpoints[id]
	if !ok || cp.OwnerID != ownerID {
		return nil, fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
	}
	return cp, nil
}

func (m *mockCheckpointStore) DeleteCheckpoint(ctx context.Context, ownerID, id string) error {
	if _, err := m.GetCheckpoint(ctx, ownerID, id); err != nil {
		return err
	}
	delete(m.checkpoints, id)
	return nil
}

func (m *mockCheckpointStore) UpdateCheckpointMetadata(ctx context.Context, ownerID, id, name, description string) error {
	cp, err := m.GetCheckpoint(ctx, ownerID, id)
	if err != nil {
		return err
	}
	cp.Name = name
	cp.Description = description
	return nil
}

func (m *mockCheckpointStore) GetCheckpointSettings(ctx context.Context, ownerID, workspaceID string) (*core.CheckpointSettings, error) {
	if m.settingsErr != nil {
		return nil, m.settingsErr
	}
	if s, ok := m.settings[ownerID+"/"+workspaceID]; ok {
		return s, nil
	}
	return &core.CheckpointSettings{WorkspaceID: workspaceID, MaxCheckpoints: core.DefaultMaxCheckpoints}, nil
}

func (m *mockCheckpointStore) UpdateCheckpointSettings(ctx context.Context, ownerID, workspaceID string, maxCheckpoints int) error {
	if m.settingsErr != nil {
		return m.settingsErr
	}
	m.settings[ownerID+"/"+workspaceID] = &core.CheckpointSettings{WorkspaceID: workspaceID, MaxCheckpoints: maxCheckpoints}
	return nil
}

type zeroJitter struct{}

func (zeroJitter) Intn(n int) int { return n / 2 }

var desk = core.Product{ID: "desk-1", Name: "Desk", Category: core.CategoryDesk}

func setup(t *testing.T) (http.Handler, *mockCheckpointStore, *session.Manager) {
	t.Helper()
	store := newMockCheckpointStore()
	sessions := session.NewManager(memory.NewWorkspaceStore(), nil, workspace.WithRandomSource(zeroJitter{}))

	r := chi.NewRouter()
	r.Route("/workspaces/{id}", WorkspaceRoutes(store, sessions))
	r.Route("/checkpoints", func(r chi.Router) {
		Mount(r, store, sessions)
	})
	return r, store, sessions
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func addItems(t *testing.T, sessions *session.Manager, n int) {
	t.Helper()
	_, err := sessions.Apply(context.Background(), middleware.AnonymousOwner, "office", func(e *workspace.Engine) error {
		for i := 0; i < n; i++ {
			e.AddItem(desk)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
}

func TestHandleCreateCheckpoint(t *testing.T) {
	router, store, sessions := setup(t)
	addItems(t, sessions, 2)

	rec := do(router, http.MethodPost, "/workspaces/office/checkpoints", `{"name":"Before","description":"two desks"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Status code = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp CreateCheckpointResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	cp, ok := store.checkpoints[resp.ID]
	if !ok {
		t.Fatalf("checkpoint %s not stored", resp.ID)
	}
	if cp.Name != "Before" || cp.ItemCount != 2 || cp.CreatedBy != middleware.AnonymousOwner || cp.WorkspaceID != "office" {
		t.Errorf("stored checkpoint = %+v", cp)
	}

	var items []workspace.PlacedItem
	if err := json.Unmarshal(cp.Data, &items); err != nil {
		t.Fatalf("checkpoint data is not an item list: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("checkpoint has %d items, want 2", len(items))
	}
}

func TestHandleCreateCheckpoint_Errors(t *testing.T) {
	router, store, _ := setup(t)

	rec := do(router, http.MethodPost, "/workspaces/office/checkpoints", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid json: Status code = %d, want 400", rec.Code)
	}

	store.createErr = fmt.Errorf("disk full")
	rec = do(router, http.MethodPost, "/workspaces/office/checkpoints", `{}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("store error: Status code = %d, want 500", rec.Code)
	}
}

func TestHandleListCheckpoints(t *testing.T) {
	router, store, _ := setup(t)

	rec := do(router, http.MethodGet, "/workspaces/office/checkpoints", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list body = %q, want []", rec.Body.String())
	}

	do(router, http.MethodPost, "/workspaces/office/checkpoints", `{"name":"one"}`)
	do(router, http.MethodPost, "/workspaces/office/checkpoints", `{"name":"two"}`)

	rec = do(router, http.MethodGet, "/workspaces/office/checkpoints", "")
	var list []core.Checkpoint
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list) != 2 || list[0].Name != "two" {
		t.Errorf("list = %+v", list)
	}

	store.listErr = fmt.Errorf("boom")
	rec = do(router, http.MethodGet, "/workspaces/office/checkpoints", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", rec.Code)
	}
}

func TestHandleGetUpdateDeleteCheckpoint(t *testing.T) {
	router, store, _ := setup(t)
	do(router, http.MethodPost, "/workspaces/office/checkpoints", `{"name":"one"}`)

	rec := do(router, http.MethodGet, "/checkpoints/cp-0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: Status code = %d, want 200", rec.Code)
	}

	rec = do(router, http.MethodPut, "/checkpoints/cp-0", `{"name":"renamed","description":"d"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update: Status code = %d, want 204", rec.Code)
	}
	if store.checkpoints["cp-0"].Name != "renamed" {
		t.Errorf("name = %q, want renamed", store.checkpoints["cp-0"].Name)
	}

	rec = do(router, http.MethodPut, "/checkpoints/cp-0", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("update bad body: Status code = %d, want 400", rec.Code)
	}

	rec = do(router, http.MethodDelete, "/checkpoints/cp-0", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: Status code = %d, want 204", rec.Code)
	}

	for _, tt := range []struct{ method, body string }{
		{http.MethodGet, ""},
		{http.MethodPut, `{"name":"x"}`},
		{http.MethodDelete, ""},
		{http.MethodPost, ""},
	} {
		path := "/checkpoints/cp-0"
		if tt.method == http.MethodPost {
			path += "/restore"
		}
		rec := do(router, tt.method, path, tt.body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s on deleted checkpoint: Status code = %d, want 404", tt.method, path, rec.Code)
		}
	}
}

func TestHandleRestoreCheckpoint(t *testing.T) {
	router, _, sessions := setup(t)
	addItems(t, sessions, 1)

	do(router, http.MethodPost, "/workspaces/office/checkpoints", `{"name":"one desk"}`)
	addItems(t, sessions, 2)

	rec := do(router, http.MethodPost, "/checkpoints/cp-0/restore", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var state workspace.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(state.Items) != 1 {
		t.Errorf("restored %d items, want 1", len(state.Items))
	}
	if !state.CanUndo {
		t.Error("restore should be undoable")
	}

	undone, err := sessions.Apply(context.Background(), middleware.AnonymousOwner, "office", func(e *workspace.Engine) error {
		e.Undo()
		return nil
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if len(undone.Items) != 3 {
		t.Errorf("after undo %d items, want 3", len(undone.Items))
	}
}

func TestHandleRestoreCheckpoint_CorruptData(t *testing.T) {
	router, store, _ := setup(t)
	store.checkpoints["bad"] = &core.Checkpoint{ID: "bad", OwnerID: middleware.AnonymousOwner, WorkspaceID: "office", Data: []byte("{")}

	rec := do(router, http.MethodPost, "/checkpoints/bad/restore", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d, want 422", rec.Code)
	}
}

func TestHandleSettings(t *testing.T) {
	router, store, _ := setup(t)

	rec := do(router, http.MethodGet, "/workspaces/office/checkpoints/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200", rec.Code)
	}
	var settings core.CheckpointSettings
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if settings.MaxCheckpoints != core.DefaultMaxCheckpoints {
		t.Errorf("MaxCheckpoints = %d", settings.MaxCheckpoints)
	}

	tests := []struct {
		body string
		want int
	}{
		{`{"max_checkpoints":5}`, 5},
		{`{"max_checkpoints":0}`, core.DefaultMaxCheckpoints},
		{`{"max_checkpoints":-3}`, core.DefaultMaxCheckpoints},
	}
	for _, tt := range tests {
		rec := do(router, http.MethodPut, "/workspaces/office/checkpoints/settings", tt.body)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Status code = %d, want 204", rec.Code)
		}
		got := store.settings[middleware.AnonymousOwner+"/office"].MaxCheckpoints
		if got != tt.want {
			t.Errorf("%s: MaxCheckpoints = %d, want %d", tt.body, got, tt.want)
		}
	}

	rec = do(router, http.MethodPut, "/workspaces/office/checkpoints/settings", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want 400", rec.Code)
	}

	store.settingsErr = fmt.Errorf("boom")
	rec = do(router, http.MethodGet, "/workspaces/office/checkpoints/settings", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", rec.Code)
	}
}
