package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memStorage struct {
	mu      sync.Mutex
	batches [][]ReviewEvent
	err     error
}

func (m *memStorage) WriteBatch(_ context.Context, events []ReviewEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Воркер переиспользует слайс пачки
	m.batches = append(m.batches, append([]ReviewEvent(nil), events...))
	return m.err
}

func (m *memStorage) events() []ReviewEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []ReviewEvent
	for _, b := range m.batches {
		res = append(res, b...)
	}
	return res
}

func TestAgentFS_DrainOnStop(t *testing.T) {
	store := &memStorage{}
	fs := NewAgentFS(store, Options{BufferSize: 100, BatchSize: 7, FlushInterval: time.Hour}, zap.NewNop())
	fs.Start()

	for i := 0; i < 20; i++ {
		fs.Log(ReviewEvent{ID: string(rune('a' + i)), ReviewID: "r"})
	}
	fs.Stop()

	got := store.events()
	require.Len(t, got, 20)
	for i, e := range got {
		assert.Equal(t, string(rune('a'+i)), e.ID, "order must be preserved")
		assert.False(t, e.Timestamp.IsZero())
	}
	// 7 + 7 по размеру, остаток 6 при остановке
	assert.Len(t, store.batches, 3)
}

func TestAgentFS_FlushesOnTicker(t *testing.T) {
	store := &memStorage{}
	fs := NewAgentFS(store, Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	fs.Start()
	defer fs.Stop()

	fs.Log(ReviewEvent{ID: "1"})
	assert.Eventually(t, func() bool { return len(store.events()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestAgentFS_DropsAfterStop(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := &memStorage{}
	fs := NewAgentFS(store, DefaultOptions(), zap.New(core))
	fs.Start()
	fs.Stop()
	fs.Stop()

	fs.Log(ReviewEvent{ID: "late"})
	assert.Empty(t, store.events())
	assert.Equal(t, 1, logs.FilterMessage("audit event dropped: auditor is stopping").Len())
}

func TestAgentFS_OverflowIsLoadShedding(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	// Воркер не запущен: буфер на 1 событие
	fs := NewAgentFS(&memStorage{}, Options{BufferSize: 1}, zap.New(core))

	fs.Log(ReviewEvent{ID: "1", ReviewID: "r1"})
	fs.Log(ReviewEvent{ID: "2", ReviewID: "r2", Recommendation: "defer", Deferred: true})

	assert.Equal(t, 1, fs.Pending())
	entries := logs.FilterMessage("audit_buffer_overflow").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "r2", entries[0].ContextMap()["review_id"])
}

func TestAgentFS_WriteErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	store := &memStorage{err: errors.New("db down")}
	fs := NewAgentFS(store, Options{BatchSize: 1}, zap.New(core))
	fs.Start()

	fs.Log(ReviewEvent{ID: "1"})
	fs.Stop()

	assert.Equal(t, 1, logs.FilterMessage("audit flush failed").Len())
}
