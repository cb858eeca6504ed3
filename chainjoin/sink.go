package chainjoin

// Sink receives each complete binding a join produces, once per match and
// in the order found.
//
// The binding is only valid for the duration of Emit; a sink that retains
// it must call Clone. Returning ErrStop ends the run cleanly, any other
// error aborts it and is returned to the caller.
type Sink interface {
	Emit(b Binding) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(b Binding) error

// Emit calls f(b)
func (f SinkFunc) Emit(b Binding) error {
	return f(b)
}

// Flusher is implemented by sinks that buffer output until the run ends
type Flusher interface {
	Flush() error
}
