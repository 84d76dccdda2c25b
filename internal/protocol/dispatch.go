package protocol

// Handler applies one inbound message.
type Handler func(Message)

// Dispatcher routes messages to exactly one handler per kind.
// It is not safe for concurrent use; the session owns its dispatcher and
// dispatches from its event loop only.
type Dispatcher struct {
	handlers map[Kind]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind]Handler)}
}

// Handle registers fn for kind, replacing any previous handler.
func (d *Dispatcher) Handle(kind Kind, fn Handler) {
	d.handlers[kind] = fn
}

// Dispatch calls the handler for m.Kind. It reports false when no handler is
// registered; such messages are ignored.
func (d *Dispatcher) Dispatch(m Message) bool {
	fn, ok := d.handlers[m.Kind]
	if !ok {
		return false
	}
	fn(m)
	return true
}
