package events

// Handler consumes domain events.
type Handler interface {
	Handle(event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(event Event) error

func (f HandlerFunc) Handle(event Event) error {
	return f(event)
}
