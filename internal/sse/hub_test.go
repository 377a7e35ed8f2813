// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	ch := hub.Register("client1")
	assert.NotNil(t, ch)
	assert.Equal(t, 1, hub.ClientCount())

	ch2 := hub.Register("client2")
	assert.Equal(t, 2, hub.ClientCount())
	assert.ElementsMatch(t, []string{"client1", "client2"}, hub.ClientIDs())

	hub.Unregister("client1")
	assert.Equal(t, 1, hub.ClientCount())
	_, open := <-ch
	assert.False(t, open)

	hub.Unregister("client2")
	assert.Equal(t, 0, hub.ClientCount())
	_, open = <-ch2
	assert.False(t, open)
}

func TestHub_UnregisterUnknown(t *testing.T) {
	hub := NewHub()
	ch := hub.Register("client1")

	hub.Unregister("client1")
	// Second unregister must not close the channel again.
	hub.Unregister("client1")
	hub.Unregister("nobody")

	_, open := <-ch
	assert.False(t, open)
}

func TestHub_RegisterReplacesExisting(t *testing.T) {
	hub := NewHub()
	old := hub.Register("client1")
	current := hub.Register("client1")

	assert.Equal(t, 1, hub.ClientCount())
	_, open := <-old
	assert.False(t, open)

	hub.Broadcast("hello")
	assert.Equal(t, "hello", <-current)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()

	ch1 := hub.Register("client1")
	ch2 := hub.Register("client2")

	hub.Broadcast("broadcast")

	for _, ch := range []chan string{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "broadcast", msg)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("expected message")
		}
	}
}

func TestHub_BroadcastFullChannelDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch := hub.Register("client1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < bufferSize+10; i++ {
			hub.Broadcast(fmt.Sprintf("msg-%d", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full channel")
	}
	assert.Len(t, ch, bufferSize)
	assert.Equal(t, "msg-0", <-ch)
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub()
	ch := hub.Register("client1")

	hub.Publish("dispatch.sent", map[string]any{"code_id": 7, "email": "a@example.com"})

	msg := <-ch
	assert.Equal(t, "id: 1\nevent: dispatch.sent\ndata: {\"code_id\":7,\"email\":\"a@example.com\"}\n\n", msg)

	hub.Publish("dispatch.finished", map[string]int{"sent": 1})
	assert.Equal(t, "id: 2\nevent: dispatch.finished\ndata: {\"sent\":1}\n\n", <-ch)
}

func TestHub_PublishUnencodable(t *testing.T) {
	hub := NewHub()
	ch := hub.Register("client1")

	hub.Publish("bad", make(chan int))

	assert.Empty(t, ch)
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("client%d", i)
			ch := hub.Register(id)
			hub.Publish("tick", i)
			hub.Unregister(id)
			for range ch {
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 0, hub.ClientCount())
}
