package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"layout-server/core"
	"layout-server/stores/memory"
	"layout-server/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zeroJitter struct{}

func (zeroJitter) Intn(n int) int { return n / 2 }

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	states []workspace.State
}

func (n *recordingNotifier) Publish(ownerID, workspaceID string, state workspace.State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ownerID+"/"+workspaceID)
	n.states = append(n.states, state)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// flakyStore wraps a store and fails Get or Save on demand.
type flakyStore struct {
	core.WorkspaceStore
	getErr  error
	saveErr error
	saves   int
}

func (f *flakyStore) Get(ctx context.Context, ownerID, id string) (*core.Workspace, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.WorkspaceStore.Get(ctx, ownerID, id)
}

func (f *flakyStore) Save(ctx context.Context, ws *core.Workspace) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.WorkspaceStore.Save(ctx, ws)
}

var desk = core.Product{ID: "desk-1", Name: "Desk", Category: core.CategoryDesk, Price: 100}

func newTestManager(store core.WorkspaceStore, notifier Notifier) *Manager {
	n := 0
	ids := workspace.IDFunc(func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	})
	return NewManager(store, notifier, workspace.WithIDSource(ids), workspace.WithRandomSource(zeroJitter{}))
}

func addDesk(e *workspace.Engine) error {
	e.AddItem(desk)
	return nil
}

func TestApply_SavesAndPublishes(t *testing.T) {
	store := memory.NewWorkspaceStore()
	notifier := &recordingNotifier{}
	m := newTestManager(store, notifier)
	ctx := context.Background()

	state, err := m.Apply(ctx, "alice", "ws-1", addDesk)
	require.NoError(t, err)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "item-1", state.Items[0].ID)
	assert.Equal(t, workspace.BasePosition, state.Items[0].Position)

	assert.Equal(t, []string{"alice/ws-1"}, notifier.events)

	record, err := store.Get(ctx, "alice", "ws-1")
	require.NoError(t, err)
	assert.Equal(t, 1, record.ItemCount)
	assert.Equal(t, "ws-1", record.Name)

	p, err := workspace.Decode(record.Data)
	require.NoError(t, err)
	assert.Len(t, p.Items, 1)
	assert.Len(t, p.Past, 1)
}

func TestApply_NoChangeSkipsSaveAndPublish(t *testing.T) {
	store := &flakyStore{WorkspaceStore: memory.NewWorkspaceStore()}
	notifier := &recordingNotifier{}
	m := newTestManager(store, notifier)
	ctx := context.Background()

	// Removing an unknown item is a no-op.
	_, err := m.Apply(ctx, "alice", "ws-1", func(e *workspace.Engine) error {
		e.RemoveItem("missing")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, store.saves)
	assert.Equal(t, 0, notifier.count())
}

func TestApply_ReloadsFromStore(t *testing.T) {
	store := memory.NewWorkspaceStore()
	ctx := context.Background()

	first := newTestManager(store, nil)
	_, err := first.Apply(ctx, "alice", "ws-1", addDesk)
	require.NoError(t, err)
	_, err = first.Apply(ctx, "alice", "ws-1", func(e *workspace.Engine) error {
		e.SetZoomScale(2)
		return nil
	})
	require.NoError(t, err)

	second := newTestManager(store, nil)
	state, err := second.State(ctx, "alice", "ws-1")
	require.NoError(t, err)
	assert.Len(t, state.Items, 1)
	assert.Equal(t, 2.0, state.ZoomScale)
	assert.True(t, state.CanUndo)
	assert.Empty(t, state.Selection)
}

func TestApply_CorruptSnapshotStartsEmpty(t *testing.T) {
	store := memory.NewWorkspaceStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &core.Workspace{ID: "ws-1", OwnerID: "alice", Name: "Kept", Data: []byte("{broken")}))

	m := newTestManager(store, nil)
	state, err := m.State(ctx, "alice", "ws-1")
	require.NoError(t, err)
	assert.Empty(t, state.Items)
	assert.Equal(t, workspace.DefaultZoom, state.ZoomScale)

	_, err = m.Apply(ctx, "alice", "ws-1", addDesk)
	require.NoError(t, err)
	record, err := store.Get(ctx, "alice", "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "Kept", record.Name)
}

func TestApply_StoreErrorIsReturned(t *testing.T) {
	store := &flakyStore{WorkspaceStore: memory.NewWorkspaceStore(), getErr: errors.New("connection refused")}
	m := newTestManager(store, nil)

	_, err := m.Apply(context.Background(), "alice", "ws-1", addDesk)
	require.Error(t, err)

	// The next call retries the load.
	store.getErr = nil
	state, err := m.Apply(context.Background(), "alice", "ws-1", addDesk)
	require.NoError(t, err)
	assert.Len(t, state.Items, 1)
}

func TestApply_SaveErrorDoesNotFailCommand(t *testing.T) {
	store := &flakyStore{WorkspaceStore: memory.NewWorkspaceStore(), saveErr: errors.New("disk full")}
	notifier := &recordingNotifier{}
	m := newTestManager(store, notifier)

	state, err := m.Apply(context.Background(), "alice", "ws-1", addDesk)
	require.NoError(t, err)
	assert.Len(t, state.Items, 1)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, notifier.count())
}

func TestApply_CommandErrorIsReturned(t *testing.T) {
	m := newTestManager(memory.NewWorkspaceStore(), nil)
	boom := errors.New("boom")

	_, err := m.Apply(context.Background(), "alice", "ws-1", func(e *workspace.Engine) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestApply_OwnersAreIsolated(t *testing.T) {
	m := newTestManager(memory.NewWorkspaceStore(), nil)
	ctx := context.Background()

	_, err := m.Apply(ctx, "alice", "ws-1", addDesk)
	require.NoError(t, err)

	state, err := m.State(ctx, "bob", "ws-1")
	require.NoError(t, err)
	assert.Empty(t, state.Items)
}

func TestApply_Concurrent(t *testing.T) {
	store := memory.NewWorkspaceStore()
	m := NewManager(store, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Apply(ctx, "alice", "ws-1", addDesk)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := m.State(ctx, "alice", "ws-1")
	require.NoError(t, err)
	assert.Len(t, state.Items, 15)
	assert.Equal(t, 15, state.PastLength)
}

func TestDelete(t *testing.T) {
	store := memory.NewWorkspaceStore()
	m := newTestManager(store, nil)
	ctx := context.Background()

	_, err := m.Apply(ctx, "alice", "ws-1", addDesk)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws-1"}, m.Active("alice"))

	require.NoError(t, m.Delete(ctx, "alice", "ws-1"))
	assert.Empty(t, m.Active("alice"))
	_, err = store.Get(ctx, "alice", "ws-1")
	assert.ErrorIs(t, err, core.ErrWorkspaceNotFound)

	err = m.Delete(ctx, "alice", "ws-1")
	assert.ErrorIs(t, err, core.ErrWorkspaceNotFound)
}

func TestDelete_WaitingCommandDoesNotRecreate(t *testing.T) {
	store := memory.NewWorkspaceStore()
	notifier := &recordingNotifier{}
	m := newTestManager(store, notifier)
	ctx := context.Background()

	_, err := m.Apply(ctx, "alice", "ws-1", addDesk)
	require.NoError(t, err)

	// A command that fetched the session before Delete ran and takes its lock after.
	stale := m.session("alice", "ws-1")
	require.NoError(t, m.Delete(ctx, "alice", "ws-1"))

	_, err = m.lock(ctx, stale)
	assert.ErrorIs(t, err, core.ErrWorkspaceNotFound)

	_, err = store.Get(ctx, "alice", "ws-1")
	assert.ErrorIs(t, err, core.ErrWorkspaceNotFound)
	assert.Equal(t, 1, notifier.count())

	// A later command starts a fresh, tracked workspace.
	state, err := m.Apply(ctx, "alice", "ws-1", addDesk)
	require.NoError(t, err)
	assert.Len(t, state.Items, 1)
	assert.Equal(t, []string{"ws-1"}, m.Active("alice"))
}

func TestDelete_ConcurrentWithCommands(t *testing.T) {
	store := memory.NewWorkspaceStore()
	m := newTestManager(store, nil)
	ctx := context.Background()

	_, err := m.Apply(ctx, "alice", "ws-1", addDesk)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Apply(ctx, "alice", "ws-1", addDesk)
			if err != nil {
				assert.ErrorIs(t, err, core.ErrWorkspaceNotFound)
			}
		}()
	}
	require.NoError(t, m.Delete(ctx, "alice", "ws-1"))
	wg.Wait()

	// Whatever survived in the store must be tracked by a live session.
	if _, err := store.Get(ctx, "alice", "ws-1"); err == nil {
		assert.Equal(t, []string{"ws-1"}, m.Active("alice"))
	}
}

func TestDelete_LoadedButNeverSaved(t *testing.T) {
	m := newTestManager(memory.NewWorkspaceStore(), nil)
	ctx := context.Background()

	_, err := m.State(ctx, "alice", "ws-1")
	require.NoError(t, err)
	assert.NoError(t, m.Delete(ctx, "alice", "ws-1"))
}

func TestActive(t *testing.T) {
	m := newTestManager(memory.NewWorkspaceStore(), nil)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		_, err := m.State(ctx, "alice", id)
		require.NoError(t, err)
	}
	_, err := m.State(ctx, "bob", "z")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, m.Active("alice"))
	assert.Equal(t, []string{"z"}, m.Active("bob"))
	assert.Equal(t, []string{}, m.Active("carol"))
}
