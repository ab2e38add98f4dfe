// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// frameIDAllocator hands out frame IDs in [1..255], per local device,
// skipping any ID still held by a live waiter (spec §3 "Frame-ID counter",
// §5 invariant 5). Modeled on samuel-go-xbee's nextFrameID wraparound
// (`frameID++; if 0 { frameID = 1 }`), extended with an in-use set so a
// wrapped-around ID is never handed to a second caller while its first
// waiter is still outstanding.
type frameIDAllocator struct {
	mu    sync.Mutex
	next  byte
	inUse map[byte]bool
}

func newFrameIDAllocator() *frameIDAllocator {
	return &frameIDAllocator{inUse: make(map[byte]bool)}
}

// allocate returns the next free ID, or ErrFrameIDExhausted if all 255 are
// currently in use (spec §5).
func (a *frameIDAllocator) allocate() (byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < 255; i++ {
		a.next++
		if a.next == 0 {
			a.next = 1
		}
		if !a.inUse[a.next] {
			a.inUse[a.next] = true
			return a.next, nil
		}
	}
	return 0, ErrFrameIDExhausted
}

// release frees id for reuse. Releasing an ID that is not in use is a no-op.
func (a *frameIDAllocator) release(id byte) {
	a.mu.Lock()
	delete(a.inUse, id)
	a.mu.Unlock()
}

// waiter is the in-flight record for one synchronous send (spec §3 "Waiter
// record"). It exists only for the duration of correlator.sendSync.
type waiter struct {
	sentFrame Frame
	mnemonic  ATCommand
	hasMnemonic bool
	remote    bool // sentFrame.Type == FrameRemoteATCommandRequest
}

// matches implements the waiter's match predicate (spec §4.7):
//  1. frame_id already guaranteed equal — the registry delivers this frame
//     only because it was published keyed under the waiter's frame ID.
//  2. if the sent frame was an AT request, the reply must be the
//     corresponding response type with the same mnemonic (case-insensitive).
//  3. the reply must not be byte-identical to the sent frame (echo guard).
func (w *waiter) matches(f Frame) bool {
	if framesEqual(w.sentFrame, f) {
		return false
	}
	if !w.hasMnemonic {
		return true
	}
	if w.remote {
		if f.Type != FrameRemoteATCommandResponse {
			return false
		}
	} else if f.Type != FrameATCommandResponse {
		return false
	}
	got, ok := responseMnemonic(f)
	return ok && got.equalFold(w.mnemonic)
}

// correlator is the Correlator / Send Engine (spec §4.7): it owns frame-ID
// allocation, serializes writes through a single lock, and parks sync
// callers on the keyed Subscription's bounded channel guarded by a
// time.Timer deadline — the same "explicit state, released on every exit
// path" discipline hayabusa-cloud-framer/forward.go uses for its per-call
// state struct.
type correlator struct {
	transport Transport
	escaped   bool
	registry  *listenerRegistry
	alloc     *frameIDAllocator

	writeMu sync.Mutex

	faultOnce sync.Once
	faultCh   chan struct{}
	faultErr  error
}

func newCorrelator(t Transport, escaped bool, registry *listenerRegistry) *correlator {
	return &correlator{
		transport: t,
		escaped:   escaped,
		registry:  registry,
		alloc:     newFrameIDAllocator(),
		faultCh:   make(chan struct{}),
	}
}

// fault fails every outstanding and future sync wait with err (spec §4.5:
// "all outstanding waiters are failed with TransportClosed"). Called once
// by the Reader when it exits on EOF or a fatal I/O error.
func (c *correlator) fault(err error) {
	c.faultOnce.Do(func() {
		c.faultErr = err
		close(c.faultCh)
	})
}

// write serializes f onto the transport under the write lock. It is the
// only method that ever calls Transport.Write, per spec §5 ("writers
// serialize through a transport write-lock; only one frame is on the wire
// at a time").
func (c *correlator) write(f Frame) error {
	wire := Encode(f, c.escaped)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.transport.Write(wire)
	if err != nil {
		return wrapIoError(err, "correlator: transport write failed")
	}
	return nil
}

// assignID fills f.ID from the allocator if it is zero.
func (c *correlator) assignID(f Frame) (Frame, error) {
	if f.ID != 0 {
		return f, nil
	}
	id, err := c.alloc.allocate()
	if err != nil {
		return Frame{}, err
	}
	f.ID = id
	return f, nil
}

// sendFireAndForget writes f with no frame ID and returns immediately
// (spec §4.7 "opts.sync=false, no_frame_id"). A TRANSMIT_REQUEST with
// frame_id 0 additionally tells the module to suppress its TRANSMIT_STATUS
// reply, the same real-hardware meaning samuel-go-xbee relies on.
func (c *correlator) sendFireAndForget(f Frame) error {
	return c.write(f)
}

// listenerSend is the handle returned by sendWithListener: frames matching
// the assigned ID arrive on C, and Close both unregisters the listener and
// frees the frame ID for reuse.
type listenerSend struct {
	Frame Frame

	sub   *Subscription
	alloc *frameIDAllocator
	id    byte
}

// C is the channel frames matching Frame.ID are delivered on.
func (s *listenerSend) C() <-chan Frame { return s.sub.C }

// Close unregisters the listener and releases the frame ID. Safe to call
// more than once.
func (s *listenerSend) Close() {
	s.sub.Close()
	s.alloc.release(s.id)
}

// sendWithListener assigns a frame ID if absent, registers a keyed listener
// for it, writes the frame, and returns immediately without waiting for a
// reply (spec §4.7 "opts.sync=false, with_listener(L)"). The caller owns
// the returned listenerSend and must Close it when done, which also frees
// the frame ID — unlike sendSync, nothing else releases it.
func (c *correlator) sendWithListener(f Frame) (*listenerSend, error) {
	f, err := c.assignID(f)
	if err != nil {
		return nil, err
	}
	sub := c.registry.subscribeKeyed(f.ID)
	if err := c.write(f); err != nil {
		sub.Close()
		c.alloc.release(f.ID)
		return nil, err
	}
	return &listenerSend{Frame: f, sub: sub, alloc: c.alloc, id: f.ID}, nil
}

// sendSync implements the synchronous contract (spec §4.7 "opts.sync=true"):
// f must require a frame ID; sendSync assigns one if absent, writes the
// frame, and blocks until a matching response arrives or timeout elapses.
func (c *correlator) sendSync(f Frame, timeout time.Duration) (Frame, error) {
	select {
	case <-c.faultCh:
		return Frame{}, c.faultErr
	default:
	}
	if !f.Type.needsFrameID() {
		return Frame{}, pkgerrors.Errorf("xbee: frame type %s does not elicit a response", f.Type)
	}
	f, err := c.assignID(f)
	if err != nil {
		return Frame{}, err
	}
	defer c.alloc.release(f.ID)

	mnemonic, hasMnemonic := sentMnemonic(f)
	w := &waiter{
		sentFrame:   f,
		mnemonic:    mnemonic,
		hasMnemonic: hasMnemonic,
		remote:      f.Type == FrameRemoteATCommandRequest,
	}

	sub := c.registry.subscribeKeyed(f.ID)
	defer sub.Close()

	if err := c.write(f); err != nil {
		return Frame{}, err
	}

	return c.park(sub, w, timeout)
}

// park blocks on sub.C, filtering out echoes and mismatched frames (spec
// §4.7 match predicate), until a matching frame arrives or the deadline
// expires. A matching frame that never arrives in time surfaces ErrTimeout;
// the Subscription is closed by the caller's defer, so any later-arriving
// frame with this ID is delivered only to global listeners from then on
// (spec §4.7 "Cancellation").
func (c *correlator) park(sub *Subscription, w *waiter, timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case f := <-sub.C:
			if w.matches(f) {
				return f, nil
			}
			// Not our response (e.g. the echoed copy of our own send):
			// keep waiting against the same deadline.
		case <-timer.C:
			return Frame{}, ErrTimeout
		case <-c.faultCh:
			return Frame{}, c.faultErr
		}
	}
}

// sendAndCheck sends f synchronously and requires the reply to be a
// TRANSMIT_STATUS/TX_STATUS frame reporting SUCCESS (spec §4.7
// "send_and_check"). Used by callers that transmit data/addressing frames
// rather than AT commands and need delivery confirmation.
func (c *correlator) sendAndCheck(f Frame, timeout time.Duration) error {
	resp, err := c.sendSync(f, timeout)
	if err != nil {
		return err
	}
	status, err := parseTransmitStatus(resp.Type, resp.Payload)
	if err != nil {
		return err
	}
	if status != TransmitStatusSuccess {
		return &TransmitError{Status: status}
	}
	return nil
}
