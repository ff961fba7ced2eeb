package notify

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_SubscribeAndNotify(t *testing.T) {
	n := New[string]("config-reloaded")
	defer n.Close()

	var got []string
	n.Subscribe(func(event string) error {
		got = append(got, "first:"+event)
		return nil
	})
	n.Subscribe(func(event string) error {
		got = append(got, "second:"+event)
		return nil
	})

	failed := n.Notify("x")

	assert.Zero(t, failed)
	assert.Equal(t, []string{"first:x", "second:x"}, got, "delivery follows subscription order")
	assert.Equal(t, "config-reloaded", n.Topic())
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := New[int]("t")
	defer n.Close()

	calls := 0
	sub := n.Subscribe(func(int) error {
		calls++
		return nil
	})

	n.Notify(1)
	sub.Unsubscribe()
	sub.Unsubscribe()
	n.Notify(2)

	assert.Equal(t, 1, calls)
	assert.Zero(t, n.Len())
}

func TestNotifier_UnsubscribeKeepsOthers(t *testing.T) {
	n := New[int]("t")

	var order []string
	a := n.Subscribe(func(int) error { order = append(order, "a"); return nil })
	n.Subscribe(func(int) error { order = append(order, "b"); return nil })
	n.Subscribe(func(int) error { order = append(order, "c"); return nil })

	require.NoError(t, a.Close())
	n.Notify(0)

	assert.Equal(t, []string{"b", "c"}, order)
}

func TestNotifier_FailingObserverIsolated(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := New[int]("config-reloaded", WithLogger(logger))

	var reached []int
	n.Subscribe(func(int) error { return errors.New("boom") })
	n.Subscribe(func(int) error { panic("bad observer") })
	n.Subscribe(func(v int) error {
		reached = append(reached, v)
		return nil
	})

	failed := n.Notify(7)

	assert.Equal(t, 2, failed)
	assert.Equal(t, []int{7}, reached)
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "bad observer")
}

func TestNotifier_Close(t *testing.T) {
	n := New[int]("t")

	calls := 0
	n.Subscribe(func(int) error { calls++; return nil })

	n.Close()
	n.Close()
	n.Notify(1)

	late := n.Subscribe(func(int) error { calls++; return nil })
	n.Notify(2)
	late.Unsubscribe()

	assert.Zero(t, calls)
}

func TestNotifier_ConcurrentSubscribe(t *testing.T) {
	n := New[int]("t")
	defer n.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := n.Subscribe(func(int) error { return nil })
			n.Notify(1)
			sub.Unsubscribe()
		}()
	}
	wg.Wait()

	assert.Zero(t, n.Len())
}
