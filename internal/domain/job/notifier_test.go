package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhound/ingest/internal/domain/model"
)

// scriptedWaiter blocks each WaitForNotification until the test pushes a
// result through notify, standing in for a LISTEN/NOTIFY round trip.
type scriptedWaiter struct {
	calls  atomic.Int64
	notify chan error
}

func newScriptedWaiter() *scriptedWaiter {
	return &scriptedWaiter{notify: make(chan error)}
}

func (w *scriptedWaiter) WaitForNotification(ctx context.Context, _ model.JobType) error {
	w.calls.Add(1)
	select {
	case err := <-w.notify:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *scriptedWaiter) deliver(t *testing.T, result error) {
	t.Helper()
	select {
	case w.notify <- result:
	case <-time.After(time.Second):
		t.Fatal("no wait loop consumed the notification")
	}
}

func awaitWakeup(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not woken")
	}
}

func TestNewNotifierRequiresWaiter(t *testing.T) {
	notifier, err := NewNotifier(NotifierOptions{})
	require.ErrorIs(t, err, ErrWaiterRequired)
	assert.Nil(t, notifier)
}

func TestNotificationWakesSubscriber(t *testing.T) {
	waiter := newScriptedWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.JobTypeLinkPage)
	defer unsub()

	waiter.deliver(t, nil)
	awaitWakeup(t, ch)

	// The wakeup channel holds at most one pending signal so bursts
	// coalesce instead of queueing.
	assert.Equal(t, 1, cap(ch))
	assert.Empty(t, ch)
}

func TestListenerSharedAcrossSubscribers(t *testing.T) {
	waiter := newScriptedWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsubA, chA := notifier.Subscribe(model.JobTypeLinkPage)
	defer unsubA()
	unsubB, chB := notifier.Subscribe(model.JobTypeLinkPage)
	defer unsubB()

	// One notification fans out to every subscriber of the type.
	waiter.deliver(t, nil)
	awaitWakeup(t, chA)
	awaitWakeup(t, chB)
}

func TestWaitErrorStillWakesSubscriber(t *testing.T) {
	waiter := newScriptedWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.JobTypeDropPage)
	defer unsub()

	waiter.deliver(t, errors.New("connection reset"))
	awaitWakeup(t, ch)
}

func TestErrorBackoffThrottlesRetry(t *testing.T) {
	waiter := newScriptedWaiter()
	notifier, err := NewNotifier(NotifierOptions{
		Waiter:  waiter,
		Backoff: 75 * time.Millisecond,
	})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, _ := notifier.Subscribe(model.JobTypeLinkPage)
	defer unsub()

	waiter.deliver(t, errors.New("boom"))

	// The loop must not re-enter the waiter before the backoff elapses.
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, waiter.calls.Load())
	require.Eventually(t, func() bool {
		return waiter.calls.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestLastUnsubscribeStopsWaitLoop(t *testing.T) {
	waiter := newScriptedWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.JobTypeVideoChannel)
	waiter.deliver(t, nil)
	awaitWakeup(t, ch)

	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Give the canceled loop a moment to exit, then verify nothing is
	// listening anymore.
	time.Sleep(50 * time.Millisecond)
	select {
	case waiter.notify <- nil:
		t.Fatal("wait loop still running after last unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopAllClosesChannels(t *testing.T) {
	waiter := newScriptedWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	unsubLink, chLink := notifier.Subscribe(model.JobTypeLinkPage)
	unsubDrop, chDrop := notifier.Subscribe(model.JobTypeDropPage)

	notifier.StopAll()

	for _, ch := range []<-chan struct{}{chLink, chDrop} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "channels should be closed after StopAll")
		case <-time.After(time.Second):
			t.Fatal("expected channel to close after StopAll")
		}
	}

	// Unsubscribes stay safe after shutdown.
	unsubLink()
	unsubDrop()
}
