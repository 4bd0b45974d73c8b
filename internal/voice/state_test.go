package voice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateEnter_FlagsFollowPhase(t *testing.T) {
	st := State{Err: "old failure"}

	st = st.enter(PhaseListening, StatusListening)
	assert.True(t, st.IsListening)
	assert.False(t, st.IsSpeaking)
	assert.Empty(t, st.Err)

	st = st.enter(PhaseSpeaking, StatusSpeaking)
	assert.False(t, st.IsListening)
	assert.True(t, st.IsSpeaking)

	st.Err = "boom"
	st = st.enter(PhaseError, "Error: boom")
	assert.False(t, st.IsListening)
	assert.False(t, st.IsSpeaking)
	assert.Equal(t, "boom", st.Err)
}

func TestStateJSON(t *testing.T) {
	st := State{Transcript: "hi"}.enter(PhaseListening, StatusListening)
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"listening","status":"Listening...","transcript":"hi","isListening":true,"isSpeaking":false}`, string(raw))
}

func TestBroadcaster_SubscribeReceivesCurrentFirst(t *testing.T) {
	b := newBroadcaster(State{Status: StatusInitializing})
	b.update(func(st State) State { return st.enter(PhaseIdle, StatusReady) })

	ch, cancel := b.subscribe(4)
	defer cancel()
	assert.Equal(t, StatusReady, (<-ch).Status)

	b.update(func(st State) State { return st.enter(PhaseListening, StatusListening) })
	assert.Equal(t, PhaseListening, (<-ch).Phase)
}

func TestBroadcaster_SlowSubscriberEndsOnLatest(t *testing.T) {
	b := newBroadcaster(State{})
	ch, cancel := b.subscribe(2)
	defer cancel()

	for _, text := range []string{"a", "ab", "abc", "abcd", "abcde"} {
		text := text
		b.update(func(st State) State {
			st.Transcript = text
			return st
		})
	}

	var last State
	for i := 0; i < 2; i++ {
		last = <-ch
	}
	assert.Equal(t, "abcde", last.Transcript)
	assert.Len(t, ch, 0)
}

func TestBroadcaster_CancelAndClose(t *testing.T) {
	b := newBroadcaster(State{})
	a, cancelA := b.subscribe(1)
	c, _ := b.subscribe(1)
	<-a
	<-c

	cancelA()
	cancelA()
	_, ok := <-a
	assert.False(t, ok)

	b.update(func(st State) State { return st.enter(PhaseListening, StatusListening) })
	assert.Equal(t, PhaseListening, (<-c).Phase)

	b.close()
	b.close()
	_, ok = <-c
	assert.False(t, ok)

	late, _ := b.subscribe(1)
	st, ok := <-late
	assert.True(t, ok)
	assert.Equal(t, PhaseListening, st.Phase)
	_, ok = <-late
	assert.False(t, ok)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "listening", PhaseListening.String())
	assert.Equal(t, "processing", PhaseProcessing.String())
	assert.Equal(t, "speaking", PhaseSpeaking.String())
	assert.Equal(t, "error", PhaseError.String())
}
