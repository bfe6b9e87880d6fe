package bus

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mmbot/internal/schema"
)

var (
	ErrBusClosed = errors.New("event bus closed")
	ErrLaneFull  = errors.New("event lane full")
)

const (
	_laneHighCapacity   = 1_000
	_laneNormalCapacity = 10_000
	_laneLowCapacity    = 100_000

	_batchSize    = 100
	_batchTimeout = 10 * time.Millisecond

	_subscriberBuffer = 256
)

// lane is a bounded, non-blocking event queue for one priority band.
type lane struct {
	name      string
	ch        chan schema.Event
	processed uint64
	dropped   uint64
}

func newLane(name string, capacity int) *lane {
	return &lane{name: name, ch: make(chan schema.Event, capacity)}
}

// subscriber receives events whose topic matches its pattern.
type subscriber struct {
	pattern string
	ch      chan schema.Event
}

// Bus fans events out to topic subscribers through three priority lanes.
// Critical and high priority events share the smallest, fastest lane; market
// data flows through the largest. Publish never blocks; a full lane drops.
type Bus struct {
	lanes  [3]*lane
	closed uint32
	done   chan struct{}

	mu   sync.Mutex
	subs []*subscriber

	subDrops uint64
	wg       sync.WaitGroup
	started  uint32
}

// Metrics is a point-in-time view of bus counters.
type Metrics struct {
	Processed       map[string]uint64
	Dropped         map[string]uint64
	QueueLen        map[string]int
	SubscriberDrops uint64
	Subscribers     int
}

// New allocates a stopped bus. Call Start before publishing.
func New() *Bus {
	return &Bus{
		lanes: [3]*lane{
			newLane("high", _laneHighCapacity),
			newLane("normal", _laneNormalCapacity),
			newLane("low", _laneLowCapacity),
		},
		done: make(chan struct{}),
	}
}

// Start launches one dispatch worker per lane.
func (b *Bus) Start() {
	if !atomic.CompareAndSwapUint32(&b.started, 0, 1) {
		return
	}
	for _, l := range b.lanes {
		b.wg.Add(1)
		go b.dispatch(l)
	}
}

// Publish routes the event to its priority lane without blocking.
// A full lane drops the event and reports ErrLaneFull.
func (b *Bus) Publish(e schema.Event) error {
	if atomic.LoadUint32(&b.closed) != 0 {
		return ErrBusClosed
	}
	l := b.laneFor(e.Priority)
	select {
	case l.ch <- e:
		return nil
	default:
		atomic.AddUint64(&l.dropped, 1)
		return ErrLaneFull
	}
}

// Subscribe registers a receiver for topics matching pattern. The pattern
// matches a whole topic, a dot prefix of it, or "*" for everything. The
// returned cancel removes the subscription and closes the channel.
func (b *Bus) Subscribe(pattern string) (<-chan schema.Event, func()) {
	s := &subscriber{pattern: pattern, ch: make(chan schema.Event, _subscriberBuffer)}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			for i, it := range b.subs {
				if it == s {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
			close(s.ch)
			b.mu.Unlock()
		})
	}
	return s.ch, cancel
}

// Close stops accepting events, drains the lanes, and closes subscriber
// channels. Lane channels stay open so a publish racing the close can never
// send on a closed channel.
func (b *Bus) Close() {
	if !atomic.CompareAndSwapUint32(&b.closed, 0, 1) {
		return
	}
	close(b.done)
	b.wg.Wait()

	b.mu.Lock()
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
	b.mu.Unlock()
}

// Metrics returns the current counters.
func (b *Bus) Metrics() Metrics {
	m := Metrics{
		Processed: make(map[string]uint64, len(b.lanes)),
		Dropped:   make(map[string]uint64, len(b.lanes)),
		QueueLen:  make(map[string]int, len(b.lanes)),
	}
	for _, l := range b.lanes {
		m.Processed[l.name] = atomic.LoadUint64(&l.processed)
		m.Dropped[l.name] = atomic.LoadUint64(&l.dropped)
		m.QueueLen[l.name] = len(l.ch)
	}
	m.SubscriberDrops = atomic.LoadUint64(&b.subDrops)
	b.mu.Lock()
	m.Subscribers = len(b.subs)
	b.mu.Unlock()
	return m
}

func (b *Bus) laneFor(p schema.Priority) *lane {
	switch p {
	case schema.PriorityCritical, schema.PriorityHigh:
		return b.lanes[0]
	case schema.PriorityNormal:
		return b.lanes[1]
	default:
		return b.lanes[2]
	}
}

// dispatch drains one lane in batches and fans each event out to matching
// subscribers. Sends to subscribers never block; a slow subscriber drops.
func (b *Bus) dispatch(l *lane) {
	defer b.wg.Done()
	batch := make([]schema.Event, 0, _batchSize)
	for {
		select {
		case <-b.done:
			b.drain(l)
			return
		case e := <-l.ch:
			batch = append(batch[:0], e)

			timeout := time.NewTimer(_batchTimeout)
		fill:
			for len(batch) < _batchSize {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
				case <-timeout.C:
					break fill
				}
			}
			timeout.Stop()
			b.deliver(l, batch)
		}
	}
}

// drain flushes whatever the lane buffered before the close.
func (b *Bus) drain(l *lane) {
	for {
		select {
		case e := <-l.ch:
			b.deliver(l, []schema.Event{e})
		default:
			return
		}
	}
}

func (b *Bus) deliver(l *lane, batch []schema.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range batch {
		atomic.AddUint64(&l.processed, 1)
		for _, s := range b.subs {
			if !topicMatches(s.pattern, e.Topic) {
				continue
			}
			select {
			case s.ch <- e:
			default:
				atomic.AddUint64(&b.subDrops, 1)
			}
		}
	}
}

func topicMatches(pattern, topic string) bool {
	if pattern == "*" || pattern == topic {
		return true
	}
	return strings.HasPrefix(topic, pattern+".")
}
