package irc

import "sync"

// Dispatcher runs event callbacks on the execution context of the subscriber.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc adapts a function to a Dispatcher, for example a UI
// framework's "run on main loop" hook.
type DispatchFunc func(fn func())

func (f DispatchFunc) Dispatch(fn func()) {
	f(fn)
}

// Immediate runs callbacks on the calling goroutine.
var Immediate Dispatcher = DispatchFunc(func(fn func()) { fn() })

// SerialDispatcher runs callbacks one after another, in submission order, on a
// single goroutine. Dispatch never blocks the caller.
type SerialDispatcher struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

func NewSerialDispatcher() *SerialDispatcher {
	d := &SerialDispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	go d.run()

	return d
}

func (d *SerialDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	d.signal()
}

// Close stops accepting callbacks. Already queued callbacks still run.
// Close does not wait for them, so it is safe to call from a callback.
func (d *SerialDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.signal()
}

// Done is closed after the last queued callback ran following Close.
func (d *SerialDispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *SerialDispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *SerialDispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		queue, closed := d.queue, d.closed
		d.queue = nil
		d.mu.Unlock()

		for _, fn := range queue {
			fn()
		}

		if closed {
			return
		}

		if len(queue) > 0 {
			continue
		}

		<-d.wake
	}
}
