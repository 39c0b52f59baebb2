package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, client Client) Event {
	t.Helper()
	select {
	case raw, ok := <-client:
		require.True(t, ok, "channel closed before event arrived")
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcastAssignsOrderedSeqs(t *testing.T) {
	h := NewHub()
	client := make(Client, 8)
	topic := MatchTopic("battle_1")
	h.Subscribe(topic, client)

	h.Broadcast(topic, EventPhaseChanged, map[string]string{"status": "ready_check"})
	h.Broadcast(topic, EventVoteTallyChanged, map[string]int{"team_a": 1})
	h.Broadcast(topic, EventMatchCompleted, nil)

	first := recvEvent(t, client)
	second := recvEvent(t, client)
	third := recvEvent(t, client)

	assert.Equal(t, EventPhaseChanged, first.Type)
	assert.Equal(t, EventVoteTallyChanged, second.Type)
	assert.Equal(t, EventMatchCompleted, third.Type)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, uint64(3), third.Seq)
}

func TestSeqsAreIndependentPerTopic(t *testing.T) {
	h := NewHub()
	a := make(Client, 4)
	b := make(Client, 4)
	h.Subscribe(MatchTopic("battle_a"), a)
	h.Subscribe(MatchTopic("battle_b"), b)

	h.Broadcast(MatchTopic("battle_a"), EventPhaseChanged, nil)
	h.Broadcast(MatchTopic("battle_a"), EventPhaseChanged, nil)
	h.Broadcast(MatchTopic("battle_b"), EventPhaseChanged, nil)

	recvEvent(t, a)
	assert.Equal(t, uint64(2), recvEvent(t, a).Seq)
	assert.Equal(t, uint64(1), recvEvent(t, b).Seq)
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := NewHub()
	topic := MatchTopic("battle_1")
	clients := []Client{make(Client, 1), make(Client, 1), make(Client, 1)}
	for _, c := range clients {
		h.Subscribe(topic, c)
	}

	h.Broadcast(topic, EventPhaseChanged, nil)
	for _, c := range clients {
		assert.Equal(t, EventPhaseChanged, recvEvent(t, c).Type)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	client := make(Client, 1)
	topic := QueueTopic("user_1")
	h.Subscribe(topic, client)
	h.Unsubscribe(topic, client)

	_, ok := <-client
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// A second unsubscribe of the same client must not panic on a closed
	// channel.
	h.Unsubscribe(topic, client)
}

func TestSlowClientDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub()
	topic := MatchTopic("battle_1")
	slow := make(Client, 1)
	h.Subscribe(topic, slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Broadcast(topic, EventVoteTallyChanged, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client channel")
	}

	// The slow client keeps the one event that fit its buffer.
	assert.Equal(t, uint64(1), recvEvent(t, slow).Seq)
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	h := NewHub()
	h.Broadcast(MatchTopic("battle_none"), EventPhaseChanged, nil)
}
