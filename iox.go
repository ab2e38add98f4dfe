// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import "code.hybscloud.com/iox"

// ErrWouldBlock and ErrMore are re-exported so a non-blocking Transport
// implementation can signal "no progress without waiting" / "more progress
// will follow" using the same control-flow sentinels code.hybscloud.com/iox
// defines, without every caller importing iox directly. The Reader retries
// a Read that returns ErrWouldBlock per Config.RetryDelay. ErrMore gets no
// handling of its own, and the Correlator does not retry a Write on either.
var (
	ErrWouldBlock = iox.ErrWouldBlock
	ErrMore       = iox.ErrMore
)
