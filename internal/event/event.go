package event

import (
	"context"
	"sync"
	"time"

	t "repolens/internal/types"
)

// Type discriminates the events on a run's output stream.
type Type string

const (
	TypeProgress  Type = "progress"
	TypeResult    Type = "result"
	TypeDone      Type = "done"
	TypeError     Type = "error-message"
	TypeKeepAlive Type = "keep-alive"
)

// Event is one message on a run's ordered output stream. Exactly one of
// result+done or error-message terminates a stream.
type Event struct {
	Type      Type      `json:"type"`
	Label     string    `json:"label,omitempty"`
	Percent   int       `json:"percent"`
	Timestamp int64     `json:"timestamp,omitempty"`
	Report    *t.Report `json:"report,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Emitter is how pipeline stages publish events without knowing the
// transport on the other end.
type Emitter interface {
	Emit(ev Event)
	Progress(label string, percent int)
	Result(report *t.Report)
	Done(message string)
	Error(err error)
	KeepAlive()
}

type emitterKey struct{}

// WithEmitter attaches an emitter to the context.
func WithEmitter(ctx context.Context, em Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, em)
}

// EmitterFrom retrieves the emitter from context, or returns a no-op
// emitter so library code never has to nil-check.
func EmitterFrom(ctx context.Context) Emitter {
	if em, ok := ctx.Value(emitterKey{}).(Emitter); ok {
		return em
	}
	return noopEmitter{}
}

type noopEmitter struct{}

func (noopEmitter) Emit(Event)           {}
func (noopEmitter) Progress(string, int) {}
func (noopEmitter) Result(*t.Report)     {}
func (noopEmitter) Done(string)          {}
func (noopEmitter) Error(error)          {}
func (noopEmitter) KeepAlive()           {}

// ChannelEmitter bridges a run to one consumer over a buffered channel.
// Progress and keep-alive events are droppable: when the buffer is full
// they are discarded rather than stalling the pipeline. Terminal events
// block until delivered or the consumer's context ends, because losing one
// would leave the stream open forever.
type ChannelEmitter struct {
	ctx  context.Context
	ch   chan Event
	once sync.Once
}

func NewChannelEmitter(ctx context.Context, buffer int) *ChannelEmitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelEmitter{ctx: ctx, ch: make(chan Event, buffer)}
}

// Events is the consumer side of the stream.
func (e *ChannelEmitter) Events() <-chan Event { return e.ch }

// Close releases the stream after the terminal event. Safe to call twice.
func (e *ChannelEmitter) Close() {
	e.once.Do(func() { close(e.ch) })
}

func (e *ChannelEmitter) Emit(ev Event) {
	select {
	case <-e.ctx.Done():
	case e.ch <- ev:
	default: // non-blocking
	}
}

func (e *ChannelEmitter) emitBlocking(ev Event) {
	select {
	case <-e.ctx.Done():
	case e.ch <- ev:
	}
}

func (e *ChannelEmitter) Progress(label string, percent int) {
	e.Emit(Event{Type: TypeProgress, Label: label, Percent: percent, Timestamp: time.Now().UnixMilli()})
}

func (e *ChannelEmitter) Result(report *t.Report) {
	e.emitBlocking(Event{Type: TypeResult, Report: report})
}

func (e *ChannelEmitter) Done(message string) {
	e.emitBlocking(Event{Type: TypeDone, Message: message})
}

func (e *ChannelEmitter) Error(err error) {
	msg := "analysis failed"
	if err != nil {
		msg = err.Error()
	}
	e.emitBlocking(Event{Type: TypeError, Error: msg})
}

func (e *ChannelEmitter) KeepAlive() {
	e.Emit(Event{Type: TypeKeepAlive})
}

// Heartbeat emits keep-alive events every interval until the context ends.
// The returned stop function halts it deterministically; calling it twice
// is fine.
func Heartbeat(ctx context.Context, em Emitter, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				em.KeepAlive()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
