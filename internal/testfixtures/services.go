package testfixtures

import (
	"time"

	"github.com/example/timecapsule/internal/application"
)

// StoreFactory assists tests with constructing stores using deterministic
// identifiers and a manual clock. Simulated round trips advance the clock by
// Latency instead of sleeping.
type StoreFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Latency     time.Duration
}

// StoreFactoryOption configures a StoreFactory instance.
type StoreFactoryOption func(*StoreFactory)

// NewStoreFactory constructs a StoreFactory with defaults.
func NewStoreFactory(opts ...StoreFactoryOption) *StoreFactory {
	factory := &StoreFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) StoreFactoryOption {
	return func(factory *StoreFactory) {
		factory.Clock = clock
	}
}

// WithLatency sets the simulated round trip applied by built stores.
func WithLatency(d time.Duration) StoreFactoryOption {
	return func(factory *StoreFactory) {
		factory.Latency = d
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) StoreFactoryOption {
	return func(factory *StoreFactory) {
		factory.IDGenerator = generator
	}
}

// NewSessionStore builds a session store from deps, filling unset identifier,
// clock and latency collaborators with the factory defaults.
func (f *StoreFactory) NewSessionStore(deps application.SessionStoreDeps) *application.SessionStore {
	if deps.IDGenerator == nil {
		deps.IDGenerator = f.IDGenerator.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	if deps.Delay == nil {
		deps.Delay = f.Clock.Latency(f.Latency)
	}
	return application.NewSessionStore(deps)
}

// NewMessageStore builds a message store from deps, filling unset identifier,
// clock and latency collaborators with the factory defaults.
func (f *StoreFactory) NewMessageStore(deps application.MessageStoreDeps) *application.MessageStore {
	if deps.IDGenerator == nil {
		deps.IDGenerator = f.IDGenerator.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	if deps.Delay == nil {
		deps.Delay = f.Clock.Latency(f.Latency)
	}
	return application.NewMessageStore(deps)
}
