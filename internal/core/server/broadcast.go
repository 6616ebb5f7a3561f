package server

import (
	"log/slog"
	"sync"

	"github.com/solatis/cpq/internal/widget"
)

// The latest event of each retained type is replayed, in this order, to
// subscribers that join later.
var retained = []string{widget.TypeResize, widget.TypeChange}

// Broadcaster fans outbound widget events out to every open Subscribe
// stream. A subscriber whose buffer is full misses the event.
type Broadcaster struct {
	log    *slog.Logger
	buffer int

	mu   sync.Mutex
	next uint64
	subs map[uint64]chan widget.Message
	last map[string]widget.Message
}

// NewBroadcaster creates a broadcaster with a per-subscriber buffer.
func NewBroadcaster(buffer int, logger *slog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		log:    logger,
		buffer: buffer,
		subs:   make(map[uint64]chan widget.Message),
		last:   make(map[string]widget.Message),
	}
}

// Emit implements widget.Emitter. It never blocks.
func (b *Broadcaster) Emit(msg widget.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range retained {
		if msg.Type == t {
			b.last[t] = msg
		}
	}
	for id, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.log.Warn("widget subscriber lagging, event dropped", "subscriber", id, "type", msg.Type)
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) subscribe() (<-chan widget.Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan widget.Message, b.buffer)
	for _, t := range retained {
		if msg, ok := b.last[t]; ok && len(ch) < cap(ch) {
			ch <- msg
		}
	}
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}
