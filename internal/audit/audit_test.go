package audit

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
	"github.com/nerrad567/gray-logic-telemetry/migrations"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(ctx, migrations.FS))
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{EventType: "group_started", GroupID: "kitchen", CreatedAt: base},
		{EventType: "device_started", GroupID: "kitchen", DeviceID: "t1", CreatedAt: base.Add(time.Second)},
		{EventType: "device_started", GroupID: "garage", DeviceID: "t2", CreatedAt: base.Add(2 * time.Second)},
		{
			EventType: "query_completed",
			GroupID:   "kitchen",
			RequestID: 7,
			Details:   map[string]any{"devices": 1},
			CreatedAt: base.Add(3 * time.Second),
		},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	all, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	assert.Equal(t, defaultLimit, all.Limit)
	require.Len(t, all.Entries, 4)

	newest := all.Entries[0]
	assert.Equal(t, "query_completed", newest.EventType)
	assert.Equal(t, int64(7), newest.RequestID)
	assert.Equal(t, map[string]any{"devices": float64(1)}, newest.Details)
	assert.True(t, newest.CreatedAt.Equal(base.Add(3*time.Second)))

	kitchen, err := repo.List(ctx, Filter{GroupID: "kitchen", EventType: "device_started"})
	require.NoError(t, err)
	require.Len(t, kitchen.Entries, 1)
	assert.Equal(t, "t1", kitchen.Entries[0].DeviceID)

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "device_started", page.Entries[0].EventType)
	assert.Equal(t, "group_started", page.Entries[1].EventType)
}

func TestSQLiteRepository_ListClampsLimit(t *testing.T) {
	repo := newTestRepository(t)

	result, err := repo.List(context.Background(), Filter{Limit: 10_000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, result.Limit)
	assert.Equal(t, 0, result.Offset)
	assert.NotNil(t, result.Entries)
	assert.Empty(t, result.Entries)
}

// memoryRepository records entries in memory and can be told to fail.
type memoryRepository struct {
	mu      sync.Mutex
	entries []Entry
	fail    bool
}

func (m *memoryRepository) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryRepository) List(context.Context, Filter) (*ListResult, error) {
	return nil, errors.New("not implemented")
}

func (m *memoryRepository) snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func TestRecorder_WritesLifecycleEventsOnly(t *testing.T) {
	repo := &memoryRepository{}
	rec := NewRecorder(repo, 16, nil)
	rec.Start()

	now := time.Now().UTC()
	rec.Publish(iot.Event{Type: iot.EventGroupStarted, GroupID: "g", Timestamp: now})
	rec.Publish(iot.Event{Type: iot.EventTemperatureRecorded, GroupID: "g", DeviceID: "d", Temperature: iot.Celsius(20)})
	rec.Publish(iot.Event{
		Type:      iot.EventQueryCompleted,
		GroupID:   "g",
		RequestID: 3,
		Duration:  1500 * time.Millisecond,
		Temperatures: map[string]iot.Reading{
			"a": iot.ValueReading(1),
			"b": iot.TimedOut(),
			"c": iot.TimedOut(),
		},
		Timestamp: now,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rec.Close(ctx))

	got := repo.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "group_started", got[0].EventType)

	query := got[1]
	assert.Equal(t, "query_completed", query.EventType)
	assert.Equal(t, int64(3), query.RequestID)
	assert.Equal(t, 3, query.Details["devices"])
	assert.Equal(t, int64(1500), query.Details["duration_ms"])
	assert.Equal(t, map[string]any{"value": 1, "timed_out": 2}, query.Details["readings"])
}

func TestRecorder_PublishAfterCloseIsIgnored(t *testing.T) {
	repo := &memoryRepository{}
	rec := NewRecorder(repo, 4, nil)
	rec.Start()
	require.NoError(t, rec.Close(context.Background()))

	assert.NotPanics(t, func() {
		rec.Publish(iot.Event{Type: iot.EventGroupStopped, GroupID: "g"})
	})
	assert.Empty(t, repo.snapshot())
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	repo := &memoryRepository{}
	rec := NewRecorder(repo, 1, nil)

	// Not started: the single buffer slot fills up.
	rec.Publish(iot.Event{Type: iot.EventDeviceStarted, GroupID: "g", DeviceID: "1"})
	rec.Publish(iot.Event{Type: iot.EventDeviceStarted, GroupID: "g", DeviceID: "2"})
	assert.Equal(t, uint64(1), rec.Dropped())

	rec.Start()
	require.NoError(t, rec.Close(context.Background()))
	assert.Len(t, repo.snapshot(), 1)
}

func TestRecorder_SurvivesWriteErrors(t *testing.T) {
	repo := &memoryRepository{fail: true}
	rec := NewRecorder(repo, 4, nil)
	rec.Start()

	rec.Publish(iot.Event{Type: iot.EventGroupStarted, GroupID: "g"})
	require.NoError(t, rec.Close(context.Background()))
	assert.Empty(t, repo.snapshot())
}

func TestRecorder_AsManagerSink(t *testing.T) {
	repo := newTestRepository(t)
	rec := NewRecorder(repo, 16, nil)
	rec.Start()

	sys := actor.NewSystem(t.Name(), nil)
	client := iot.NewClient(iot.SpawnManager(sys, iot.ManagerConfig{Events: rec}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.RecordTemperature(ctx, "lab", "t1", 19.5))
	require.NoError(t, sys.Shutdown(ctx))
	require.NoError(t, rec.Close(ctx))

	result, err := repo.List(ctx, Filter{GroupID: "lab"})
	require.NoError(t, err)

	var types []string
	for _, e := range result.Entries {
		types = append(types, e.EventType)
	}
	assert.ElementsMatch(t, []string{"group_started", "device_started", "device_stopped", "group_stopped"}, types)
}
