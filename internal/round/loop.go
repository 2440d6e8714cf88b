package round

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrLoopStopped = errors.New("round loop stopped")

// subscriberBuffer bounds how far a slow listener may fall behind before
// events are dropped for it.
const subscriberBuffer = 64

// Result is the reply to a player action.
type Result struct {
	Events   []Event
	Snapshot Snapshot
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Events   []Tagged `json:"events"`
		Snapshot Snapshot `json:"snapshot"`
	}{Tag(r.Events), r.Snapshot})
}

type (
	tapCmd struct {
		id    int
		reply chan Result
	}
	expireCmd struct {
		id    int
		reply chan Result
	}
	retryCmd struct {
		reply chan retryReply
	}
	snapshotCmd struct {
		reply chan Snapshot
	}
	subscribeCmd struct {
		reply chan subscription
	}
	unsubscribeCmd struct {
		id int
	}
)

type retryReply struct {
	result Result
	err    error
}

type subscription struct {
	id int
	ch chan Event
}

// Loop owns a Round and applies ticks and player commands to it one at a
// time, in arrival order.
type Loop struct {
	round *Round
	ticks <-chan time.Time
	inbox chan any
	now   func() time.Time

	// OnEnded runs on the loop goroutine each time the round finishes.
	OnEnded func(RoundEnded, Snapshot)

	subs    map[int]chan Event
	nextSub int

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop drives r from ticks. The caller owns the tick source; see
// Ticker for the usual wall-clock setup.
func NewLoop(r *Round, ticks <-chan time.Time) *Loop {
	return &Loop{
		round: r,
		ticks: ticks,
		inbox: make(chan any, 64),
		now:   time.Now,
		subs:  make(map[int]chan Event),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// SetClock replaces the clock used to time player actions. It must be
// called before Run.
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

// Ticker returns a channel that fires every interval and a func that stops it.
func Ticker(interval time.Duration) (<-chan time.Time, func()) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// Run processes events until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.quit:
			return
		case now := <-l.ticks:
			l.publish(l.round.Tick(now))
		case cmd := <-l.inbox:
			l.handle(cmd)
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) handle(cmd any) {
	switch c := cmd.(type) {
	case tapCmd:
		events := l.round.Tap(c.id, l.now())
		l.publish(events)
		c.reply <- Result{Events: events, Snapshot: l.round.Snapshot()}
	case expireCmd:
		events := l.round.Expire(c.id)
		l.publish(events)
		c.reply <- Result{Events: events, Snapshot: l.round.Snapshot()}
	case retryCmd:
		events, err := l.round.Retry()
		l.publish(events)
		c.reply <- retryReply{result: Result{Events: events, Snapshot: l.round.Snapshot()}, err: err}
	case snapshotCmd:
		c.reply <- l.round.Snapshot()
	case subscribeCmd:
		l.nextSub++
		ch := make(chan Event, subscriberBuffer)
		l.subs[l.nextSub] = ch
		c.reply <- subscription{id: l.nextSub, ch: ch}
	case unsubscribeCmd:
		if ch, ok := l.subs[c.id]; ok {
			close(ch)
			delete(l.subs, c.id)
		}
	}
}

func (l *Loop) publish(events []Event) {
	for _, ev := range events {
		for id, ch := range l.subs {
			select {
			case ch <- ev:
			default:
				log.Warn().Int("subscriber", id).Str("kind", ev.Kind()).Msg("subscriber lagging, event dropped")
			}
		}
		if ended, ok := ev.(RoundEnded); ok && l.OnEnded != nil {
			l.OnEnded(ended, l.round.Snapshot())
		}
	}
}

func (l *Loop) closeSubscribers() {
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
	}
}

// send delivers cmd to the loop unless it has stopped.
func (l *Loop) send(ctx context.Context, cmd any) error {
	select {
	case l.inbox <- cmd:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, l *Loop, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return zero, ErrLoopStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Tap reports that the player hit ship id.
func (l *Loop) Tap(ctx context.Context, id int) (Result, error) {
	reply := make(chan Result, 1)
	if err := l.send(ctx, tapCmd{id: id, reply: reply}); err != nil {
		return Result{}, err
	}
	return await(ctx, l, reply)
}

// Expire reports that ship id left the screen.
func (l *Loop) Expire(ctx context.Context, id int) (Result, error) {
	reply := make(chan Result, 1)
	if err := l.send(ctx, expireCmd{id: id, reply: reply}); err != nil {
		return Result{}, err
	}
	return await(ctx, l, reply)
}

// Retry restarts a finished round.
func (l *Loop) Retry(ctx context.Context) (Result, error) {
	reply := make(chan retryReply, 1)
	if err := l.send(ctx, retryCmd{reply: reply}); err != nil {
		return Result{}, err
	}
	r, err := await(ctx, l, reply)
	if err != nil {
		return Result{}, err
	}
	return r.result, r.err
}

// Snapshot returns the current round for display.
func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := l.send(ctx, snapshotCmd{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, l, reply)
}

// Subscribe returns a channel of events published after the call and a
// func that releases it. The channel is closed when the loop stops.
func (l *Loop) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	reply := make(chan subscription, 1)
	if err := l.send(ctx, subscribeCmd{reply: reply}); err != nil {
		return nil, nil, err
	}
	sub, err := await(ctx, l, reply)
	if err != nil {
		return nil, nil, err
	}
	cancel := func() {
		select {
		case l.inbox <- unsubscribeCmd{id: sub.id}:
		case <-l.done:
		}
	}
	return sub.ch, cancel, nil
}
