package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(sub *Subscription, n int, t *testing.T) []Event {
	t.Helper()
	var got []Event
	for len(got) < n {
		select {
		case e := <-sub.Events():
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d of %d", len(got)+1, n)
		}
	}
	return got
}

func TestTopic_FanOut(t *testing.T) {
	broker := NewBroker()
	topic := broker.Topic("conv-1")

	subA := topic.Subscribe()
	subB := topic.Subscribe()
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	topic.Publish(Event{Type: TypeGenerationStart, GenerationID: "g-1"})

	assert.Equal(t, "g-1", collect(subA, 1, t)[0].GenerationID)
	assert.Equal(t, "g-1", collect(subB, 1, t)[0].GenerationID)
}

func TestTopic_IsolatedPerConversation(t *testing.T) {
	broker := NewBroker()
	sub := broker.Topic("conv-1").Subscribe()
	defer sub.Unsubscribe()

	broker.Topic("conv-2").Publish(Event{Type: TypeGenerationStart, GenerationID: "g-other"})

	select {
	case e := <-sub.Events():
		t.Fatalf("received event for another conversation: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTopic_UnsubscribedReceivesNothing(t *testing.T) {
	broker := NewBroker()
	topic := broker.Topic("conv-1")

	sub := topic.Subscribe()
	sub.Unsubscribe()

	topic.Publish(Event{Type: TypeGenerationStart, GenerationID: "g-1"})

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done should be closed after Unsubscribe")
	}
	select {
	case e, ok := <-sub.Events():
		if ok {
			t.Fatalf("received event after unsubscribe: %+v", e)
		}
	default:
	}
}

func TestTopic_SlowSubscriberEvicted(t *testing.T) {
	broker := NewBroker()
	topic := broker.Topic("conv-1")

	slow := topic.Subscribe()

	// Fill the slow subscriber's buffer without draining it.
	for i := 0; i < subscriberBuffer+1; i++ {
		topic.Publish(Event{Type: TypeStreamUpdate, GenerationID: "g-1", Content: "x"})
	}

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow subscriber was not evicted")
	}

	// A fresh subscriber still receives future publishes.
	healthy := topic.Subscribe()
	defer healthy.Unsubscribe()
	topic.Publish(Event{Type: TypeGenerationEnd, GenerationID: "g-1", Status: "completed"})
	got := collect(healthy, 1, t)
	require.Equal(t, TypeGenerationEnd, got[0].Type)
}

func TestQueue_ClosesAfterTerminalEvent(t *testing.T) {
	q := NewQueue()

	q.Emit(Event{Type: TypeGenerationStart, GenerationID: "g-1"})
	q.Emit(Event{Type: TypeStreamUpdate, GenerationID: "g-1", Content: "hi"})
	q.Emit(Event{Type: TypeGenerationEnd, GenerationID: "g-1", Status: "completed"})

	var got []Event
	for e := range q.Events() {
		got = append(got, e)
	}
	require.Len(t, got, 3)
	assert.True(t, got[2].Terminal())

	// Emitting after close is a silent no-op, not a panic.
	q.Emit(Event{Type: TypeStreamUpdate, GenerationID: "g-1"})
}

func TestQueue_TerminalSurvivesFullBuffer(t *testing.T) {
	q := NewQueue()

	// Nobody drains; the buffer fills and overflow updates are shed.
	for i := 0; i < defaultQueueSize+10; i++ {
		q.Emit(Event{Type: TypeStreamUpdate, GenerationID: "g-1", Content: "x"})
	}
	q.Emit(Event{Type: TypeGenerationEnd, GenerationID: "g-1", Status: "completed"})

	var got []Event
	for e := range q.Events() {
		got = append(got, e)
	}
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.True(t, last.Terminal(), "drain must end with the terminal event")
	assert.Equal(t, "completed", last.Status)
	for _, e := range got[:len(got)-1] {
		assert.False(t, e.Terminal())
	}
}

func TestQueue_AbandonStopsDelivery(t *testing.T) {
	q := NewQueue()
	q.Abandon()
	q.Emit(Event{Type: TypeGenerationEnd, GenerationID: "g-1", Status: "completed"})

	_, open := <-q.Events()
	assert.False(t, open)
}

func TestEvent_Predicates(t *testing.T) {
	assert.True(t, Event{Type: TypeStreamUpdate}.CarriesAIContent())
	assert.True(t, Event{Type: TypeFullMessage}.CarriesAIContent())
	assert.False(t, Event{Type: TypeIDUpdate}.CarriesAIContent())
	assert.True(t, Event{Type: TypeGenerationEnd}.Terminal())
	assert.False(t, Event{Type: TypeGenerationStart}.Terminal())
}
