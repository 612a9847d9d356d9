package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

func TestHub_RegisterAndSend(t *testing.T) {
	hub := NewHub(4, &mockLogger{})

	a, err := hub.Register("a")
	require.NoError(t, err)
	b, err := hub.Register("b")
	require.NoError(t, err)
	assert.Equal(t, 2, hub.ClientCount())

	_, err = hub.Register("a")
	assert.ErrorIs(t, err, ErrClientExists)

	hub.Send([]string{"a", "b", "unknown"}, []byte("one"))
	hub.Send([]string{"b"}, []byte("two"))

	assert.Equal(t, "one", string(<-a.Outbox()))
	assert.Equal(t, "one", string(<-b.Outbox()))
	assert.Equal(t, "two", string(<-b.Outbox()))
	assert.Empty(t, a.Outbox())
}

func TestHub_FullOutboxDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(2, &mockLogger{})
	slow, err := hub.Register("slow")
	require.NoError(t, err)
	fast, err := hub.Register("fast")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			hub.Send([]string{"slow", "fast"}, []byte{byte(i)})
			<-fast.Outbox()
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full outbox")
	}

	assert.Len(t, slow.Outbox(), 2)
	assert.Equal(t, uint64(3), hub.Dropped())
	assert.Equal(t, []byte{0}, <-slow.Outbox(), "oldest frames are kept")
}

func TestHub_UnregisterClosesOutbox(t *testing.T) {
	hub := NewHub(4, &mockLogger{})
	client, err := hub.Register("a")
	require.NoError(t, err)

	hub.Unregister("a")
	hub.Unregister("a")
	_, open := <-client.Outbox()
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount())

	// Sending to a removed client is a no-op.
	hub.Send([]string{"a"}, []byte("late"))
}

func TestHub_ConcurrentSendAndUnregister(t *testing.T) {
	hub := NewHub(8, &mockLogger{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		id := string(rune('A' + i))
		client, err := hub.Register(id)
		require.NoError(t, err)

		wg.Add(2)
		go func() {
			defer wg.Done()
			for range client.Outbox() {
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hub.Send([]string{id}, []byte("x"))
			}
			hub.Unregister(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.ClientCount())
}

func TestBroadcastModule_StopClosesClients(t *testing.T) {
	m := NewModule(4, &mockLogger{})
	assert.Equal(t, "broadcast", m.Name())
	require.NoError(t, m.Start(context.Background()))

	client, err := m.GetHub().Register("a")
	require.NoError(t, err)
	health := m.Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.Details["connected_clients"])

	require.NoError(t, m.Stop(context.Background()))
	_, open := <-client.Outbox()
	assert.False(t, open)
	assert.Equal(t, 0, m.GetHub().ClientCount())
}
