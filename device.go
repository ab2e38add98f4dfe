// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// deviceState is the Device Facade's lifecycle (spec §4.8):
// NEW → CONNECTED(open) → INITIALIZED → (INITIALIZED|CONNECTED) → CLOSED.
type deviceState uint8

const (
	stateNew deviceState = iota
	stateConnected
	stateInitialized
	stateClosed
)

// LocalDevice is the Device Facade for a module attached via a transport
// this process owns (spec §4.8). It is the public entry point: callers
// build one over a Transport, Open it, Initialize it, then issue commands.
type LocalDevice struct {
	transport Transport
	config    Config
	registry  *listenerRegistry
	codec     *Codec
	corr      *correlator
	rdr       *reader

	mu    sync.Mutex
	state deviceState

	identityMu sync.Mutex
	identity   Identity
}

// NewLocalDevice constructs a facade over transport. The transport is not
// opened until Open is called.
func NewLocalDevice(transport Transport, opts ...Option) *LocalDevice {
	cfg := newConfig(opts...)
	registry := newListenerRegistry()
	return &LocalDevice{
		transport: transport,
		config:    cfg,
		registry:  registry,
		codec:     NewCodec(cfg.OperatingMode.escaped()),
		corr:      newCorrelator(transport, cfg.OperatingMode.escaped(), registry),
		state:     stateNew,
	}
}

// Subscribe registers a global listener notified of every decoded frame,
// for callers that want to observe traffic outside the request/response
// surface (spec §4.6).
func (d *LocalDevice) Subscribe() *Subscription { return d.registry.subscribeGlobal() }

// Open opens the transport and starts the Reader. Valid from NEW or CLOSED;
// reopening resets to CONNECTED without discarding cached identity
// (spec §4.8).
func (d *LocalDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateConnected || d.state == stateInitialized {
		return nil
	}
	if err := d.transport.Open(); err != nil {
		return wrapIoError(err, "device: transport open failed")
	}
	if d.state == stateClosed {
		// The previous Reader faulted the old correlator when it exited.
		d.corr = newCorrelator(d.transport, d.config.OperatingMode.escaped(), d.registry)
	}
	d.rdr = newReader(d.transport, d.codec, d.registry, d.config.RetryDelay, d.onReaderFatal)
	go d.rdr.run()
	d.state = stateConnected
	return nil
}

// Close closes the transport and stops accepting commands. Cached identity
// is retained so a subsequent Open/Initialize only refreshes null fields.
func (d *LocalDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateClosed || d.state == stateNew {
		d.state = stateClosed
		return nil
	}
	err := d.transport.Close()
	if d.rdr != nil {
		d.rdr.wait()
	}
	d.state = stateClosed
	if err != nil {
		return wrapIoError(err, "device: transport close failed")
	}
	return nil
}

func (d *LocalDevice) onReaderFatal(err error) {
	d.corr.fault(err)
}

// requireReady enforces "commands are valid only in INITIALIZED+OPEN"
// (spec §4.8), with the documented exception of identity reads during
// Initialize itself, which calls atSend directly and does not go through
// requireReady.
func (d *LocalDevice) requireReady() error {
	d.mu.Lock()
	state := d.state
	d.mu.Unlock()

	if state != stateInitialized {
		return ErrInterfaceNotOpen
	}
	if !d.transport.IsOpen() {
		return ErrInterfaceNotOpen
	}
	if !d.config.OperatingMode.supportsFrames() {
		return ErrInvalidOperatingMode
	}
	return nil
}

// Initialize populates device identity by requesting SH, SL, NI, HV, VR for
// whatever fields are currently unset, then derives Protocol from (hw, fw)
// (spec §4.8). Re-initialize (called again later) only fills fields still
// at their zero value, per §3 Lifecycle and §9's Open Question decision.
func (d *LocalDevice) Initialize() error {
	d.mu.Lock()
	state := d.state
	d.mu.Unlock()
	if state != stateConnected && state != stateInitialized {
		return ErrInterfaceNotOpen
	}
	if !d.config.OperatingMode.supportsFrames() {
		return ErrInvalidOperatingMode
	}

	d.identityMu.Lock()
	current := d.identity
	d.identityMu.Unlock()

	fresh := Identity{}
	var sh, sl []byte

	if current.Addr64.IsUnknown() || current.Addr64 == (Address64{}) {
		var err error
		if sh, err = d.atGetValue("SH"); err != nil {
			return err
		}
		if len(sh) == 0 {
			return ErrOpNotSupported
		}
		if sl, err = d.atGetValue("SL"); err != nil {
			return err
		}
		if len(sl) == 0 {
			return ErrOpNotSupported
		}
		fresh.Addr64 = NewAddress64(sh, sl)
	}
	if current.NodeID == "" {
		ni, err := d.atGetValue("NI")
		if err != nil {
			return err
		}
		if len(ni) == 0 {
			return ErrOpNotSupported
		}
		fresh.NodeID = nodeIDString(ni)
	}
	if current.HardwareVersion == HardwareVersionUnknown {
		hv, err := d.atGetValue("HV")
		if err != nil {
			return err
		}
		if len(hv) == 0 {
			return ErrOpNotSupported
		}
		fresh.HardwareVersion = HardwareVersion(hv[len(hv)-1])
	}
	if current.FirmwareVersion == "" {
		vr, err := d.atGetValue("VR")
		if err != nil {
			return err
		}
		if len(vr) == 0 {
			return ErrOpNotSupported
		}
		fresh.FirmwareVersion = firmwareVersionString(vr)
	}

	d.identityMu.Lock()
	if err := d.identity.fillEmpty(fresh); err != nil {
		d.identityMu.Unlock()
		return err
	}
	d.identity.deriveProtocol()
	d.identityMu.Unlock()

	d.mu.Lock()
	d.state = stateInitialized
	d.mu.Unlock()
	return nil
}

// Identity returns a copy of the device's cached identity.
func (d *LocalDevice) Identity() Identity {
	d.identityMu.Lock()
	defer d.identityMu.Unlock()
	return d.identity
}

// atGetValue issues an AT get for mnemonic directly through the correlator,
// bypassing requireReady — used by Initialize, which runs before the device
// reaches INITIALIZED (spec §4.8: "commands valid only in INITIALIZED+OPEN
// except identity reads during init").
func (d *LocalDevice) atGetValue(mnemonic string) ([]byte, error) {
	cmd, err := NewATCommand(mnemonic)
	if err != nil {
		return nil, err
	}
	resp, err := d.atSend(cmd, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != ATStatusOK {
		return nil, &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return resp.Value, nil
}

// atSend builds and synchronously sends an AT_COMMAND frame carrying cmd and
// an optional value, returning the decoded response.
func (d *LocalDevice) atSend(cmd ATCommand, value []byte) (ATResponse, error) {
	payload := make([]byte, 0, 2+len(value))
	payload = append(payload, cmd[0], cmd[1])
	payload = append(payload, value...)

	resp, err := d.corr.sendSync(Frame{Type: FrameATCommand, Payload: payload}, d.config.ReceiveTimeout)
	if err != nil {
		return ATResponse{}, err
	}
	return parseATResponse(resp.Payload)
}

// GetParameter issues an AT get for mnemonic (spec §4.8 get_parameter).
func (d *LocalDevice) GetParameter(mnemonic string) ([]byte, error) {
	if err := d.requireReady(); err != nil {
		return nil, err
	}
	cmd, err := NewATCommand(mnemonic)
	if err != nil {
		return nil, err
	}
	resp, err := d.atSend(cmd, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != ATStatusOK {
		return nil, &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return resp.Value, nil
}

// SetParameter issues an AT set for mnemonic with value v (spec §4.8
// set_parameter). v must not be nil.
func (d *LocalDevice) SetParameter(mnemonic string, v []byte) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	if v == nil {
		return ErrNullArg
	}
	cmd, err := NewATCommand(mnemonic)
	if err != nil {
		return err
	}
	resp, err := d.atSend(cmd, v)
	if err != nil {
		return err
	}
	if resp.Status != ATStatusOK {
		return &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return nil
}

// ExecuteParameter issues a no-value AT command (spec §4.8
// execute_parameter), e.g. a reset or force-sample action mnemonic.
func (d *LocalDevice) ExecuteParameter(mnemonic string) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	cmd, err := NewATCommand(mnemonic)
	if err != nil {
		return err
	}
	resp, err := d.atSend(cmd, nil)
	if err != nil {
		return err
	}
	if resp.Status != ATStatusOK {
		return &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return nil
}

// SetIOConfig configures line's operating mode (spec §4.8 set_io_config).
func (d *LocalDevice) SetIOConfig(line IOLine, mode IOLineMode) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	cmd, ok := line.configureMnemonic()
	if !ok {
		return &InvalidArgError{Msg: fmt.Sprintf("%s has no configure mnemonic", line)}
	}
	if !mode.validFor(line) {
		return &InvalidArgError{Msg: fmt.Sprintf("mode %d is not valid for %s", mode, line)}
	}
	resp, err := d.atSend(cmd, []byte{byte(mode)})
	if err != nil {
		return err
	}
	if resp.Status != ATStatusOK {
		return &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return nil
}

// GetIOConfig reads back line's configured mode (spec §4.8 get_io_config).
func (d *LocalDevice) GetIOConfig(line IOLine) (IOLineMode, error) {
	if err := d.requireReady(); err != nil {
		return 0, err
	}
	cmd, ok := line.configureMnemonic()
	if !ok {
		return 0, &InvalidArgError{Msg: fmt.Sprintf("%s has no configure mnemonic", line)}
	}
	resp, err := d.atSend(cmd, nil)
	if err != nil {
		return 0, err
	}
	if resp.Status != ATStatusOK {
		return 0, &ATCommandError{Command: cmd, Status: resp.Status}
	}
	if len(resp.Value) == 0 {
		return 0, ErrOpNotSupported
	}
	mode := IOLineMode(resp.Value[0])
	if !mode.validFor(line) {
		return 0, ErrOpNotSupported
	}
	return mode, nil
}

// SetDIO drives line to level. Reuses the line's configure mnemonic with a
// digital-output-mode value byte rather than a dedicated "set output"
// mnemonic, per spec §4.8's table and §9's Open Question decision:
// implemented as specified, not redesigned.
func (d *LocalDevice) SetDIO(line IOLine, level DigitalLevel) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	cmd, ok := line.configureMnemonic()
	if !ok {
		return &InvalidArgError{Msg: fmt.Sprintf("%s has no configure mnemonic", line)}
	}
	mode := IOLineModeDigitalOutLow
	if level == High {
		mode = IOLineModeDigitalOutHigh
	}
	resp, err := d.atSend(cmd, []byte{byte(mode)})
	if err != nil {
		return err
	}
	if resp.Status != ATStatusOK {
		return &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return nil
}

// GetDIO returns line's last-sampled digital level via IS (spec §4.8
// get_dio).
func (d *LocalDevice) GetDIO(line IOLine) (DigitalLevel, error) {
	sample, err := d.sampleIO()
	if err != nil {
		return 0, err
	}
	level, ok := sample.Digital[line]
	if !ok {
		return 0, ErrOpNotSupported
	}
	return level, nil
}

// GetADC returns line's last-sampled 10-bit analog value via IS (spec §4.8
// get_adc).
func (d *LocalDevice) GetADC(line IOLine) (uint16, error) {
	if !line.analogCapable() {
		return 0, ErrOpNotSupported
	}
	sample, err := d.sampleIO()
	if err != nil {
		return 0, err
	}
	v, ok := sample.Analog[line]
	if !ok {
		return 0, ErrOpNotSupported
	}
	return v, nil
}

// sampleIO issues IS and returns the decoded IOSample, branching on
// protocol per spec §4.8's "IS sampling" note: on RAW_802_15_4 the sample
// arrives as a separate async frame; on every other protocol it is embedded
// directly in the AT response value.
func (d *LocalDevice) sampleIO() (IOSample, error) {
	if err := d.requireReady(); err != nil {
		return IOSample{}, err
	}
	cmd, _ := NewATCommand("IS")

	d.identityMu.Lock()
	protocol := d.identity.Protocol
	d.identityMu.Unlock()

	if protocol == ProtocolRaw802154 {
		return d.sampleIOAsync(cmd)
	}

	resp, err := d.atSend(cmd, nil)
	if err != nil {
		return IOSample{}, err
	}
	if resp.Status != ATStatusOK {
		return IOSample{}, &ATCommandError{Command: cmd, Status: resp.Status}
	}
	if len(resp.Value) == 0 {
		return IOSample{}, ErrOpNotSupported
	}
	return parseIOSample(resp.Value)
}

// sampleIOAsync installs a one-shot global listener before sending IS, so a
// fast-arriving async sample frame can never race ahead of the subscription
// (spec §4.8: "temporarily installs a one-shot listener, waits up to
// receive_timeout").
func (d *LocalDevice) sampleIOAsync(cmd ATCommand) (IOSample, error) {
	sub := d.registry.subscribeGlobal()
	defer sub.Close()

	resp, err := d.atSend(cmd, nil)
	if err != nil {
		return IOSample{}, err
	}
	if resp.Status != ATStatusOK {
		return IOSample{}, &ATCommandError{Command: cmd, Status: resp.Status}
	}

	timer := time.NewTimer(d.config.ReceiveTimeout)
	defer timer.Stop()
	for {
		select {
		case f := <-sub.C:
			switch f.Type {
			case FrameRXIO64, FrameRXIO16, FrameIODataSampleRXIndicator:
				return parseIOSample(f.Payload)
			}
		case <-timer.C:
			return IOSample{}, ErrTimeout
		}
	}
}

// SetPWMDuty drives line's PWM output to pct percent (spec §4.8
// set_pwm_duty: "AT M0/M1 with int = round(pct·1023/100)").
func (d *LocalDevice) SetPWMDuty(line IOLine, pct float64) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	cmd, ok := line.pwmMnemonic()
	if !ok {
		return &InvalidArgError{Msg: fmt.Sprintf("%s is not PWM-capable", line)}
	}
	if pct < 0 || pct > 100 {
		return &InvalidArgError{Msg: "pct must be within [0,100]"}
	}
	raw := int(math.Round(pct * 1023 / 100))
	resp, err := d.atSend(cmd, encodeATInt(raw))
	if err != nil {
		return err
	}
	if resp.Status != ATStatusOK {
		return &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return nil
}

// GetPWMDuty reads back line's PWM duty cycle as a percentage (spec §4.8
// get_pwm_duty: "round((v·100/1023)·100)/100").
func (d *LocalDevice) GetPWMDuty(line IOLine) (float64, error) {
	if err := d.requireReady(); err != nil {
		return 0, err
	}
	cmd, ok := line.pwmMnemonic()
	if !ok {
		return 0, &InvalidArgError{Msg: fmt.Sprintf("%s is not PWM-capable", line)}
	}
	resp, err := d.atSend(cmd, nil)
	if err != nil {
		return 0, err
	}
	if resp.Status != ATStatusOK {
		return 0, &ATCommandError{Command: cmd, Status: resp.Status}
	}
	if len(resp.Value) == 0 {
		return 0, ErrOpNotSupported
	}
	raw := decodeATInt(resp.Value)
	return math.Round(float64(raw)*100/1023*100) / 100, nil
}

// Reset issues a software reset and waits for the module to signal
// completion via an asynchronous MODEM_STATUS frame (spec §4.8 reset:
// "returns once completion is observed").
func (d *LocalDevice) Reset() error {
	if err := d.requireReady(); err != nil {
		return err
	}
	sub := d.registry.subscribeGlobal()
	defer sub.Close()

	cmd, _ := NewATCommand("FR")
	resp, err := d.atSend(cmd, nil)
	if err != nil {
		return err
	}
	if resp.Status != ATStatusOK {
		return &ATCommandError{Command: cmd, Status: resp.Status}
	}

	timer := time.NewTimer(d.config.ReceiveTimeout)
	defer timer.Stop()
	for {
		select {
		case f := <-sub.C:
			if f.Type == FrameModemStatus {
				return nil
			}
		case <-timer.C:
			return ErrTimeout
		}
	}
}

// buildTransmitPayload lays out a TRANSMIT_REQUEST payload: 64-bit
// destination address, 16-bit network address (left unknown — this facade
// targets point-to-point addressing by Address64, not ZigBee's cached
// 16-bit routing), zero broadcast radius (max hops), no options, then the
// data (spec §4.3 frame-type table; wire layout grounded on
// samuel-go-xbee's Transmit).
func buildTransmitPayload(dest Address64, data []byte) []byte {
	payload := make([]byte, 0, 12+len(data))
	payload = append(payload, dest[:]...)
	payload = append(payload, Address16Unknown[:]...)
	payload = append(payload, 0, 0) // broadcast radius, options
	payload = append(payload, data...)
	return payload
}

// SendData transmits payload to dest and blocks for the module's delivery
// confirmation (spec §4.7 send_and_check: "the reply must be a
// TRANSMIT_STATUS/TX_STATUS with status SUCCESS").
func (d *LocalDevice) SendData(dest Address64, payload []byte) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	f := Frame{Type: FrameTransmitRequest, Payload: buildTransmitPayload(dest, payload)}
	return d.corr.sendAndCheck(f, d.config.ReceiveTimeout)
}

// SendDataAsync transmits payload with frame_id 0 and returns as soon as the
// write completes (spec §4.7 "opts.sync=false, no_frame_id"). frame_id 0
// additionally tells the module to suppress its TRANSMIT_STATUS reply.
func (d *LocalDevice) SendDataAsync(dest Address64, payload []byte) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	f := Frame{Type: FrameTransmitRequest, Payload: buildTransmitPayload(dest, payload)}
	return d.corr.sendFireAndForget(f)
}

// TransmitWaiter is returned by SendDataNonBlocking: the TRANSMIT_REQUEST is
// already on the wire by the time the caller holds one, so Wait only
// observes the eventual delivery confirmation rather than blocking for the
// whole round trip.
type TransmitWaiter struct {
	send *listenerSend
}

// Wait blocks until the matching TRANSMIT_STATUS/TX_STATUS arrives or
// timeout elapses, then releases the listener and frame ID.
func (w *TransmitWaiter) Wait(timeout time.Duration) error {
	defer w.send.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case f := <-w.send.C():
			status, err := parseTransmitStatus(f.Type, f.Payload)
			if err != nil {
				// not the status frame for this ID (e.g. a serial echo of
				// our own request) — keep waiting against the deadline.
				continue
			}
			if status != TransmitStatusSuccess {
				return &TransmitError{Status: status}
			}
			return nil
		case <-timer.C:
			return ErrTimeout
		}
	}
}

// Close abandons the wait, releasing the listener and frame ID immediately.
func (w *TransmitWaiter) Close() { w.send.Close() }

// SendDataNonBlocking transmits payload and returns immediately with a
// handle the caller can Wait on later, instead of blocking inline for
// delivery confirmation (spec §4.7 "opts.sync=false, with_listener(L)").
// The caller must eventually call Wait or Close to free the frame ID.
func (d *LocalDevice) SendDataNonBlocking(dest Address64, payload []byte) (*TransmitWaiter, error) {
	if err := d.requireReady(); err != nil {
		return nil, err
	}
	f := Frame{Type: FrameTransmitRequest, Payload: buildTransmitPayload(dest, payload)}
	send, err := d.corr.sendWithListener(f)
	if err != nil {
		return nil, err
	}
	return &TransmitWaiter{send: send}, nil
}

// encodeATInt renders v as the shortest big-endian byte sequence an AT
// value parameter uses (at least one byte; no parameter ever encodes as
// zero bytes).
func encodeATInt(v int) []byte {
	if v <= 0 {
		return []byte{0}
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v & 0xFF)}, b...)
		v >>= 8
	}
	return b
}

// decodeATInt parses a big-endian AT value parameter as an unsigned int.
func decodeATInt(b []byte) int {
	v := 0
	for _, x := range b {
		v = v<<8 | int(x)
	}
	return v
}
