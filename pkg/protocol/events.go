package protocol

import "sync"

// emitter fans events out to named listeners plus catch-all listeners.
type emitter struct {
	mu       sync.Mutex
	nextID   int
	named    map[string]map[int]*listener
	catchAll map[int]*listener
}

type listener struct {
	fn   Handler
	once bool
}

func newEmitter() *emitter {
	return &emitter{
		named:    make(map[string]map[int]*listener),
		catchAll: make(map[int]*listener),
	}
}

// on registers fn for the named event and returns a removal func.
func (e *emitter) on(event string, fn Handler, once bool) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	if e.named[event] == nil {
		e.named[event] = make(map[int]*listener)
	}
	e.named[event][id] = &listener{fn: fn, once: once}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.named[event], id)
	}
}

// onAny registers a catch-all listener receiving every event.
func (e *emitter) onAny(fn Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.catchAll[id] = &listener{fn: fn}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.catchAll, id)
	}
}

// off removes every listener for the named event.
func (e *emitter) off(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.named, event)
}

// emit delivers ev to matching listeners. Listeners are invoked outside the
// lock so a handler may subscribe or unsubscribe reentrantly.
func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	var fns []Handler
	if m := e.named[ev.Method]; m != nil {
		for id, l := range m {
			fns = append(fns, l.fn)
			if l.once {
				delete(m, id)
			}
		}
	}
	for _, l := range e.catchAll {
		fns = append(fns, l.fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// emitAny delivers ev to the catch-all listeners only.
func (e *emitter) emitAny(ev Event) {
	e.mu.Lock()
	fns := make([]Handler, 0, len(e.catchAll))
	for _, l := range e.catchAll {
		fns = append(fns, l.fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// removeAll drops every listener.
func (e *emitter) removeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.named = make(map[string]map[int]*listener)
	e.catchAll = make(map[int]*listener)
}
