// Package widget implements the message contract between an embedded
// configurator and the page hosting it. Outbound events follow the session
// store; inbound requests are accepted only from allow-listed origins.
package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/solatis/cpq/internal/configurator"
)

// AnyOrigin in the allow-list accepts every origin. It is never implied.
const AnyOrigin = "*"

// Emitter delivers outbound messages to the host page.
type Emitter interface {
	Emit(msg Message) error
}

// Session is the slice of the configuration store the bridge drives.
// Implemented by *configurator.Store.
type Session interface {
	Subscribe(fn func(configurator.State)) (cancel func())
	LoadShared(ctx context.Context, token string) bool
	Export() (*configurator.Export, error)
}

// Options configures a Bridge.
type Options struct {
	// AllowedOrigins lists the exact origins inbound messages may come
	// from. Empty rejects everything; "*" must be listed explicitly.
	AllowedOrigins []string

	Logger *slog.Logger
	Now    func() time.Time
}

// Bridge connects one session to one host page.
type Bridge struct {
	session Session
	emitter Emitter
	log     *slog.Logger
	now     func() time.Time

	allowAll bool
	allowed  map[string]bool

	// emitMu keeps a complete event directly behind the change event that
	// entered the phase. Ordering across commits comes from the store.
	emitMu sync.Mutex
	phase  configurator.Phase

	mu      sync.Mutex
	theme   string
	started bool
	cancel  func()
}

// New creates a bridge. Start must be called before events flow.
func New(session Session, emitter Emitter, opts Options) (*Bridge, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if emitter == nil {
		return nil, fmt.Errorf("emitter cannot be nil")
	}

	b := &Bridge{
		session: session,
		emitter: emitter,
		log:     opts.Logger,
		now:     opts.Now,
		allowed: make(map[string]bool),
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	for _, o := range opts.AllowedOrigins {
		o = normalizeOrigin(o)
		switch o {
		case "":
		case AnyOrigin:
			b.allowAll = true
		default:
			b.allowed[o] = true
		}
	}
	if !b.allowAll && len(b.allowed) == 0 {
		b.log.Warn("widget bridge has no allowed origins; all inbound messages will be rejected")
	}
	return b, nil
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.TrimSpace(o), "/")
}

// AllowsOrigin reports whether inbound messages from origin are accepted.
func (b *Bridge) AllowsOrigin(origin string) bool {
	if b.allowAll {
		return true
	}
	origin = normalizeOrigin(origin)
	return origin != "" && b.allowed[origin]
}

// Start announces readiness and begins forwarding store changes.
// Calling Start again is a no-op.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	if err := b.emit(Message{Type: TypeReady}); err != nil {
		return err
	}
	cancel := b.session.Subscribe(b.onChange)

	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	return nil
}

// Stop detaches the bridge from the store.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.started = false
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Theme returns the theme most recently set by the host. Embedding UIs read
// it to style themselves; the bridge only records it.
func (b *Bridge) Theme() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.theme
}

// Resize tells the host the widget's content height in pixels. The host
// sizes its frame from it.
func (b *Bridge) Resize(height int) error {
	if height < 0 {
		return fmt.Errorf("%w: negative height %d", ErrBadPayload, height)
	}
	msg, err := NewMessage(TypeResize, ResizeData{Height: height})
	if err != nil {
		return err
	}
	return b.emit(msg)
}

// Handle processes one inbound message. Only TypeGetConfiguration yields a
// reply.
func (b *Bridge) Handle(ctx context.Context, origin string, msg Message) (*Message, error) {
	if !b.AllowsOrigin(origin) {
		b.log.Warn("rejected widget message", "origin", origin, "type", msg.Type)
		return nil, fmt.Errorf("%w: %q", ErrOriginNotAllowed, origin)
	}
	if err := checkInbound(msg); err != nil {
		return nil, err
	}

	switch msg.Type {
	case TypeSetTheme:
		var d ThemeData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		b.mu.Lock()
		b.theme = d.Theme
		b.mu.Unlock()
		return nil, nil

	case TypeLoadConfiguration:
		var d LoadConfigurationData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		// A bad token is logged by the store and otherwise ignored.
		b.session.LoadShared(ctx, d.Config)
		return nil, nil

	case TypeGetConfiguration:
		e, err := b.session.Export()
		if err != nil {
			return nil, fmt.Errorf("export configuration: %w", err)
		}
		reply, err := NewMessage(TypeConfiguration, e)
		if err != nil {
			return nil, err
		}
		return &reply, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
}

func (b *Bridge) onChange(st configurator.State) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	phase := st.Phase()
	if msg, err := NewMessage(TypeChange, changeData(st)); err == nil {
		_ = b.emit(msg)
	} else {
		b.log.Warn("encode change event", "error", err)
	}

	entered := phase == configurator.PhaseComplete && b.phase != configurator.PhaseComplete
	b.phase = phase
	if !entered {
		return
	}

	var data any
	if e, err := configurator.NewExport(st, b.now()); err == nil {
		data = e
	}
	if msg, err := NewMessage(TypeComplete, data); err == nil {
		_ = b.emit(msg)
	} else {
		b.log.Warn("encode complete event", "error", err)
	}
}

func changeData(st configurator.State) ChangeData {
	return ChangeData{
		ModelID:     st.ModelID,
		Selections:  st.Selections,
		IsValid:     st.IsValid(),
		Violations:  st.ValidationResults,
		Pricing:     st.Pricing,
		Subtotal:    st.Subtotal(),
		CurrentStep: st.CurrentStep,
		Completion:  st.CompletionPercentage(),
		Phase:       string(st.Phase()),
	}
}

func (b *Bridge) emit(msg Message) error {
	if err := b.emitter.Emit(msg); err != nil {
		b.log.Warn("widget emit failed", "type", msg.Type, "error", err)
		return fmt.Errorf("emit %s: %w", msg.Type, err)
	}
	return nil
}
