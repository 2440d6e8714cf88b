package round

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, r *Round) (*Loop, chan time.Time) {
	t.Helper()
	ticks := make(chan time.Time)
	l := NewLoop(r, ticks)
	l.SetClock(func() time.Time { return epoch })
	go l.Run(context.Background())
	t.Cleanup(l.Stop)
	return l, ticks
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestLoop_TickPublishesSpawns(t *testing.T) {
	l, ticks := startLoop(t, newTestRound(t, grafo, WithPattern([]string{"-"})))
	ctx := context.Background()

	events, cancel, err := l.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	ticks <- epoch
	ev := nextEvent(t, events)
	spawned, ok := ev.(EntitySpawned)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, grafo.Conjugations[0], spawned.Form)

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, spawned.ID, snap.Entities[0].ID)
}

func TestLoop_TapUpdatesRound(t *testing.T) {
	r := newTestRound(t, grafo, WithPattern([]string{"-"}))
	l, ticks := startLoop(t, r)
	ctx := context.Background()

	events, cancel, err := l.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	target := snap.TargetForm

	var targetID = -1
	for targetID < 0 {
		ticks <- epoch
		s := nextEvent(t, events).(EntitySpawned)
		if s.Form == target {
			targetID = s.ID
		}
	}

	res, err := l.Tap(ctx, targetID)
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, 1, res.Snapshot.State.Score)
	assert.Equal(t, EntityExpired{ID: targetID, Tapped: true}, nextEvent(t, events))
	assert.IsType(t, SessionChanged{}, nextEvent(t, events))

	res, err = l.Tap(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Equal(t, 1, res.Snapshot.State.Score)
}

func TestLoop_RetryAndEndHook(t *testing.T) {
	r := newTestRound(t, grafo, WithPattern([]string{"-"}))
	ticks := make(chan time.Time)
	l := NewLoop(r, ticks)
	l.SetClock(func() time.Time { return epoch })

	ended := make(chan RoundEnded, 1)
	l.OnEnded = func(e RoundEnded, snap Snapshot) {
		assert.Equal(t, "γράφω", snap.Verb)
		ended <- e
	}
	go l.Run(context.Background())
	defer l.Stop()
	ctx := context.Background()

	_, err := l.Retry(ctx)
	assert.ErrorIs(t, err, ErrRoundActive)

	for i := 0; i < StartingLives; i++ {
		var wrongID = -1
		for wrongID < 0 {
			ticks <- epoch
			snap, err := l.Snapshot(ctx)
			require.NoError(t, err)
			for _, e := range snap.Entities {
				if e.Form != snap.TargetForm {
					wrongID = e.ID
				}
			}
		}
		_, err := l.Tap(ctx, wrongID)
		require.NoError(t, err)
	}

	select {
	case e := <-ended:
		assert.False(t, e.Won)
	case <-time.After(time.Second):
		t.Fatal("end hook not called")
	}

	res, err := l.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhasePlaying, res.Snapshot.Phase)
	assert.Equal(t, StartingLives, res.Snapshot.State.Lives)
}

func TestLoop_Expire(t *testing.T) {
	l, ticks := startLoop(t, newTestRound(t, grafo, WithPattern([]string{"-"})))
	ctx := context.Background()

	ticks <- epoch
	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)

	res, err := l.Expire(ctx, snap.Entities[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []Event{EntityExpired{ID: snap.Entities[0].ID}}, res.Events)
	assert.Empty(t, res.Snapshot.Entities)
}

func TestLoop_StopClosesSubscribers(t *testing.T) {
	l, _ := startLoop(t, newTestRound(t, grafo))
	ctx := context.Background()

	events, _, err := l.Subscribe(ctx)
	require.NoError(t, err)

	l.Stop()
	l.Stop()
	<-l.Done()

	_, ok := <-events
	assert.False(t, ok)

	_, err = l.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrLoopStopped)
}

func TestLoop_UnsubscribeClosesChannel(t *testing.T) {
	l, _ := startLoop(t, newTestRound(t, grafo))
	events, cancel, err := l.Subscribe(context.Background())
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestLoop_ContextCancelStopsRun(t *testing.T) {
	l := NewLoop(newTestRound(t, grafo), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTicker(t *testing.T) {
	ch, stop := Ticker(5 * time.Millisecond)
	defer stop()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestResult_JSONTagsEventKinds(t *testing.T) {
	b, err := json.Marshal(Result{Events: []Event{EntityExpired{ID: 4, Tapped: true}}})
	require.NoError(t, err)

	var got struct {
		Events []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got.Events, 1)
	assert.Equal(t, KindEntityExpired, got.Events[0].Kind)
	assert.JSONEq(t, `{"id":4,"tapped":true}`, string(got.Events[0].Data))

	b, err = json.Marshal(Result{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"events":[]`)
}
