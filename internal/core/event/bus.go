package event

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink consumes published records synchronously, in publish order.
// A sink must not publish on the bus it is attached to.
type Sink interface {
	Consume(rec Record)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(rec Record)

func (f SinkFunc) Consume(rec Record) { f(rec) }

// Bus assigns sequence numbers to notifications and fans them out to sinks
// and subscribers. Subscribers that fall behind lose records rather than
// stall the publisher.
type Bus struct {
	mu     sync.Mutex
	seq    uint64
	sinks  []Sink
	subs   map[uint64]*Subscription
	nextID uint64

	now    func() time.Time
	onDrop func(name Name)
	logger *zap.Logger
}

// BusOption configures a Bus
type BusOption func(*Bus)

// WithClock overrides the time source used to stamp records
func WithClock(now func() time.Time) BusOption {
	return func(b *Bus) { b.now = now }
}

// WithDropHook is called whenever a subscriber misses a record
func WithDropHook(fn func(name Name)) BusOption {
	return func(b *Bus) { b.onDrop = fn }
}

// WithLogger sets the bus logger
func WithLogger(logger *zap.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// NewBus creates an empty bus
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[uint64]*Subscription),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Seq returns the sequence number of the last published record
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// ResumeFrom makes the next record follow seq. It never moves the sequence
// backwards.
func (b *Bus) ResumeFrom(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq > b.seq {
		b.seq = seq
	}
}

// AddSink attaches a synchronous consumer
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish stamps the events and delivers them in order. It returns the
// published records.
func (b *Bus) Publish(events ...Event) []Record {
	if len(events) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	records := make([]Record, 0, len(events))
	for _, ev := range events {
		b.seq++
		rec := Record{
			Seq:   b.seq,
			Time:  b.now().UTC(),
			Name:  ev.EventName(),
			Event: ev,
		}
		records = append(records, rec)

		for _, s := range b.sinks {
			s.Consume(rec)
		}
		for _, sub := range b.subs {
			select {
			case sub.ch <- rec:
			default:
				b.logger.Warn("subscriber dropped record",
					zap.Uint64("subscription", sub.id),
					zap.Uint64("seq", rec.Seq),
					zap.String("event", rec.Name.String()))
				if b.onDrop != nil {
					b.onDrop(rec.Name)
				}
			}
		}
	}
	return records
}

// Subscription is a buffered stream of published records
type Subscription struct {
	id   uint64
	bus  *Bus
	ch   chan Record
	once sync.Once
}

// Subscribe opens a stream with room for buffer undelivered records
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, bus: b, ch: make(chan Record, buffer)}
	b.subs[sub.id] = sub
	return sub
}

// C returns the channel records are delivered on. It is closed by Close.
func (s *Subscription) C() <-chan Record {
	return s.ch
}

// Close detaches the subscription from the bus
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Subscribers returns the number of open subscriptions
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
