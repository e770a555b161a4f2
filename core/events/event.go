package events

// Event is a typed payload describing a state change an engine wants
// observers to see.
type Event interface {
	EventType() string
}

// Emitter receives events as they happen. Engines hold one and call Emit
// after a mutation commits; what happens next is the sink's concern.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter drops everything. Engine constructors install it as the
// default so an unwired emitter is never an error.
type NoopEmitter struct{}

// Emit discards the event.
func (NoopEmitter) Emit(Event) {}
