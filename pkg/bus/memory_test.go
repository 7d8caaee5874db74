package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversToExactSubject(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	received := make(chan string, 1)
	_, err := b.Subscribe(context.Background(), SubjectRunStarted, func(subject string, data []byte) {
		received <- subject
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), SubjectRunStarted, []byte(`{}`)))
	select {
	case subject := <-received:
		assert.Equal(t, SubjectRunStarted, subject)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the message")
	}
}

func TestMemoryBusWildcardMatchesNavigationSubjects(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	var mu sync.Mutex
	var subjects []string
	_, err := b.Subscribe(context.Background(), SubjectNavigationBase+"*", func(subject string, data []byte) {
		mu.Lock()
		subjects = append(subjects, subject)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), SubjectNavigationBase+"default", nil))
	require.NoError(t, b.Publish(context.Background(), SubjectNavigationBase+"warm", nil))
	require.NoError(t, b.Publish(context.Background(), SubjectRunFinished, nil))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(subjects) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.ElementsMatch(t, []string{
		SubjectNavigationBase + "default",
		SubjectNavigationBase + "warm",
	}, subjects)
	mu.Unlock()
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	received := make(chan struct{}, 4)
	sub, err := b.Subscribe(context.Background(), SubjectCollectorFailed, func(string, []byte) {
		received <- struct{}{}
	})
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe(), "unsubscribing twice is harmless")

	require.NoError(t, b.Publish(context.Background(), SubjectCollectorFailed, nil))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, received)
}

func TestClosedBusRejectsOperations(t *testing.T) {
	b := NewMemoryBus()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "closing twice is harmless")

	assert.ErrorIs(t, b.Publish(context.Background(), SubjectRunStarted, nil), ErrClosed)
	_, err := b.Subscribe(context.Background(), SubjectRunStarted, func(string, []byte) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishEventTolerantOfNilBus(t *testing.T) {
	require.NoError(t, PublishEvent(context.Background(), nil, SubjectRunStarted, Event{RunID: "r1"}))
}

func TestPublishEventCarriesPayload(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	received := make(chan []byte, 1)
	_, err := b.Subscribe(context.Background(), SubjectRunFinished, func(_ string, data []byte) {
		received <- data
	})
	require.NoError(t, err)

	require.NoError(t, PublishEvent(context.Background(), b, SubjectRunFinished, Event{
		RunID: "01RUN",
		URL:   "https://example.com/",
		Mode:  "navigation",
	}))

	select {
	case data := <-received:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, "01RUN", ev.RunID)
		assert.Equal(t, "https://example.com/", ev.URL)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event never arrived")
	}
}
