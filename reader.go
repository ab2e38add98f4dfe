// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import (
	"errors"
	"io"
	"log/slog"
	"runtime"
	"time"
)

// reader is the Reader (spec §4.5): the sole consumer of a Transport's
// inbound bytes. It runs as one goroutine per local device, feeds every
// byte into a Codec, and publishes each decoded frame to the Listener
// Registry. Codec errors are recovered locally; a fatal transport error or
// EOF stops the loop and faults every outstanding waiter.
type reader struct {
	transport Transport
	codec     *Codec
	registry  *listenerRegistry
	retry     time.Duration

	onFatal func(error) // invoked once when the loop exits on EOF/close or a read error; not when a negative retry stops it
	done    chan struct{}
}

func newReader(t Transport, codec *Codec, registry *listenerRegistry, retryDelay time.Duration, onFatal func(error)) *reader {
	return &reader{
		transport: t,
		codec:     codec,
		registry:  registry,
		retry:     retryDelay,
		onFatal:   onFatal,
		done:      make(chan struct{}),
	}
}

// run drains the transport until it closes or a fatal I/O error occurs. It
// is meant to be launched with `go r.run()`.
func (r *reader) run() {
	defer close(r.done)

	buf := make([]byte, 256)
	for {
		n, err := r.transport.Read(buf)
		for i := 0; i < n; i++ {
			frame, ready, decodeErr := r.codec.Feed(buf[i])
			if decodeErr != nil {
				// BadChecksum/BadLength never surface past the Reader
				// (spec §4.5/§7): log and drop only the offending frame.
				slog.Warn("xbee: dropping frame", "error", decodeErr)
				continue
			}
			if ready {
				r.registry.publish(frame)
			}
		}

		if err == nil && n == 0 {
			// spec §6: a zero-byte, nil-error read is a documented "closed"
			// signal, not a short read — treat it the same as io.EOF.
			r.onFatal(ErrTransportClosed)
			return
		}
		if err == nil {
			continue
		}
		if errors.Is(err, ErrWouldBlock) {
			if r.sleepOrStop() {
				return
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			r.onFatal(ErrTransportClosed)
			return
		}
		r.onFatal(wrapIoError(err, "reader: transport read failed"))
		return
	}
}

// sleepOrStop waits Config.RetryDelay before the next poll, honoring the
// same negative/zero/positive contract documented on Config.RetryDelay. It
// reports true if the reader should give up (negative RetryDelay means the
// caller wants non-blocking semantics all the way through, which a
// background reader cannot honor usefully, so it stops rather than busy
// spinning).
func (r *reader) sleepOrStop() bool {
	switch {
	case r.retry < 0:
		return true
	case r.retry == 0:
		runtime.Gosched()
		return false
	default:
		time.Sleep(r.retry)
		return false
	}
}

// wait blocks until the reader goroutine has exited.
func (r *reader) wait() {
	<-r.done
}
