// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import (
	"log/slog"
	"sync"
)

// listenerQueueDepth bounds each subscriber's handoff channel (spec §4.6:
// "bounded handoff... whose overflow policy is drop-oldest-with-warn").
const listenerQueueDepth = 16

// listener is a single subscription's bounded handoff. The Reader is the
// only writer; apart from deliver discarding the oldest frame on overflow,
// the subscriber goroutine is the only reader.
type listener struct {
	ch chan Frame
}

func newListener() *listener {
	return &listener{ch: make(chan Frame, listenerQueueDepth)}
}

// deliver offers f to l without blocking. If l's queue is full, the oldest
// queued frame is dropped to make room and a warning is logged — the
// registry must never block the Reader (spec §4.6).
func (l *listener) deliver(f Frame) {
	select {
	case l.ch <- f:
		return
	default:
	}
	select {
	case <-l.ch:
		slog.Warn("xbee: listener queue full, dropping oldest frame")
	default:
	}
	select {
	case l.ch <- f:
	default:
		slog.Warn("xbee: listener queue full, dropping frame", "type", f.Type)
	}
}

// Subscription is a handle returned by the Listener Registry. Frames arrive
// on C in reader order; call Close when done (idempotent, spec §4.6
// "removal is idempotent").
type Subscription struct {
	C chan Frame

	reg    *listenerRegistry
	global bool
	key    byte

	mu     sync.Mutex
	closed bool
}

// Close unregisters the subscription. Safe to call more than once and from
// any goroutine.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.global {
		s.reg.removeGlobal(s)
	} else {
		s.reg.removeKeyed(s.key, s)
	}
}

// listenerRegistry is the Listener Registry (spec §4.6): it fans out every
// frame the Reader decodes to global subscribers and to the keyed
// subscriber (if any) registered for that frame's ID, modeled on
// samuel-go-xbee's idMap map[byte]chan Event guarded by a mutex.
type listenerRegistry struct {
	mu     sync.Mutex
	global map[*Subscription]*listener
	keyed  map[byte]map[*Subscription]*listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		global: make(map[*Subscription]*listener),
		keyed:  make(map[byte]map[*Subscription]*listener),
	}
}

// subscribeGlobal registers a subscriber notified of every decoded frame.
func (r *listenerRegistry) subscribeGlobal() *Subscription {
	l := newListener()
	sub := &Subscription{C: l.ch, reg: r, global: true}
	r.mu.Lock()
	r.global[sub] = l
	r.mu.Unlock()
	return sub
}

// subscribeKeyed registers a subscriber notified only of frames whose
// Frame.ID equals key. Used by the Correlator for sync waiters and for
// sendWithListener's listener; the IS-sample wait subscribes globally.
func (r *listenerRegistry) subscribeKeyed(key byte) *Subscription {
	l := newListener()
	sub := &Subscription{C: l.ch, reg: r, key: key}
	r.mu.Lock()
	m, ok := r.keyed[key]
	if !ok {
		m = make(map[*Subscription]*listener)
		r.keyed[key] = m
	}
	m[sub] = l
	r.mu.Unlock()
	return sub
}

func (r *listenerRegistry) removeGlobal(sub *Subscription) {
	r.mu.Lock()
	delete(r.global, sub)
	r.mu.Unlock()
}

func (r *listenerRegistry) removeKeyed(key byte, sub *Subscription) {
	r.mu.Lock()
	if m, ok := r.keyed[key]; ok {
		delete(m, sub)
		if len(m) == 0 {
			delete(r.keyed, key)
		}
	}
	r.mu.Unlock()
}

// publish delivers f to every matching subscriber in reader order. It never
// blocks on a subscriber (spec §4.5/§4.6: "must not block the reader").
func (r *listenerRegistry) publish(f Frame) {
	r.mu.Lock()
	globals := make([]*listener, 0, len(r.global))
	for _, l := range r.global {
		globals = append(globals, l)
	}
	var keyed []*listener
	if m, ok := r.keyed[f.ID]; ok {
		keyed = make([]*listener, 0, len(m))
		for _, l := range m {
			keyed = append(keyed, l)
		}
	}
	r.mu.Unlock()

	for _, l := range globals {
		l.deliver(f)
	}
	for _, l := range keyed {
		l.deliver(f)
	}
}
