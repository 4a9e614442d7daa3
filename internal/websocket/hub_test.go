package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/isdelr/lms-be/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()
	t.Cleanup(func() {
		hub.Stop()
		<-done
	})
	return hub
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case payload, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg struct {
			Action  string                    `json:"action"`
			Payload services.EnrollmentChange `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(payload, &msg))
		return Message{Action: msg.Action, Payload: msg.Payload}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.Send:
		t.Fatalf("unexpected message: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifyEnrollmentChangedRoutesByTopic(t *testing.T) {
	hub := startHub(t)

	course := NewClient(nil, "course-1")
	other := NewClient(nil, "course-2")
	global := NewClient(nil, "")
	assert.Equal(t, GlobalTopic, global.Topic)
	hub.Join(course)
	hub.Join(other)
	hub.Join(global)

	change := services.EnrollmentChange{CourseID: "course-1", StudentID: "s1", Enrolled: true, RosterSize: 1, Capacity: 2}
	hub.NotifyEnrollmentChanged(change)

	got := receive(t, course)
	assert.Equal(t, ActionEnrollmentChanged, got.Action)
	assert.Equal(t, change, got.Payload)
	assert.Equal(t, change, receive(t, global).Payload)
	assertSilent(t, other)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := startHub(t)

	c := NewClient(nil, "course-1")
	hub.Join(c)
	hub.Leave(c)

	_, ok := <-c.Send
	assert.False(t, ok, "leaving closes the send channel")

	assert.NotPanics(t, func() {
		hub.NotifyEnrollmentChanged(services.EnrollmentChange{CourseID: "course-1"})
		hub.Leave(c)
	})
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := startHub(t)

	slow := NewClient(nil, "course-1")
	hub.Join(slow)
	for i := 0; i < cap(slow.Send); i++ {
		slow.Send <- []byte("filler")
	}

	probe := NewClient(nil, "probe")
	hub.Join(probe)

	hub.BroadcastTo("course-1", []byte("overflow"))
	// Broadcasts are handled in order, so once the probe hears its message
	// the overflow has been processed.
	hub.BroadcastTo("probe", []byte("ping"))
	select {
	case <-probe.Send:
	case <-time.After(2 * time.Second):
		t.Fatal("probe message not delivered")
	}

	deadline := time.After(2 * time.Second)
	drained := 0
	for {
		select {
		case _, ok := <-slow.Send:
			if !ok {
				assert.Equal(t, cap(slow.Send), drained)
				return
			}
			drained++
		case <-deadline:
			t.Fatal("slow client was not dropped")
		}
	}
}

func TestStopClosesClients(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	c := NewClient(nil, GlobalTopic)
	hub.Join(c)
	hub.Stop()
	<-done

	_, ok := <-c.Send
	assert.False(t, ok)

	// Joining after Stop must not block.
	hub.Join(NewClient(nil, GlobalTopic))
}
