// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import "sync"

// remoteATOptionsApplyChanges is the REMOTE_AT_COMMAND_REQUEST options byte
// requesting the remote module apply parameter changes immediately rather
// than waiting for a later AC/WR.
const remoteATOptionsApplyChanges byte = 0x02

// RemoteDevice is a facade whose writes are wrapped into
// REMOTE_AT_COMMAND_REQUEST frames and sent through a LocalDevice's
// correlator (spec §4.9). It holds no transport, reader, or frame-ID
// counter of its own — it borrows all three from the LocalDevice it shares,
// the same "type that reuses another type's machinery instead of
// re-implementing it" discipline hayabusa-cloud-framer's Forwarder applies
// to a pair of framers.
type RemoteDevice struct {
	local *LocalDevice
	addr64 Address64
	addr16 Address16

	mu       sync.Mutex
	identity Identity
}

// NewRemoteDevice addresses a module by its 64-bit address, reachable
// through local. The remote's short address is "unknown" (spec §4.9);
// nothing in RemoteDevice updates it.
func NewRemoteDevice(local *LocalDevice, addr64 Address64) *RemoteDevice {
	return &RemoteDevice{local: local, addr64: addr64, addr16: Address16Unknown}
}

// Addr64 returns the remote module's 64-bit address.
func (r *RemoteDevice) Addr64() Address64 { return r.addr64 }

// atSend wraps cmd/value in a REMOTE_AT_COMMAND_REQUEST addressed to r and
// sends it synchronously through the local device's correlator.
func (r *RemoteDevice) atSend(cmd ATCommand, value []byte) (ATResponse, error) {
	r.mu.Lock()
	addr16 := r.addr16
	r.mu.Unlock()

	payload := make([]byte, 0, 8+2+1+2+len(value))
	payload = append(payload, r.addr64[:]...)
	payload = append(payload, addr16[:]...)
	payload = append(payload, remoteATOptionsApplyChanges)
	payload = append(payload, cmd[0], cmd[1])
	payload = append(payload, value...)

	resp, err := r.local.corr.sendSync(Frame{Type: FrameRemoteATCommandRequest, Payload: payload}, r.local.config.ReceiveTimeout)
	if err != nil {
		return ATResponse{}, err
	}
	return parseATResponse(resp.Payload)
}

// GetParameter issues a Remote AT get for mnemonic (spec §4.9/§4.8).
func (r *RemoteDevice) GetParameter(mnemonic string) ([]byte, error) {
	cmd, err := NewATCommand(mnemonic)
	if err != nil {
		return nil, err
	}
	resp, err := r.atSend(cmd, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != ATStatusOK {
		return nil, &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return resp.Value, nil
}

// SetParameter issues a Remote AT set for mnemonic with value v.
func (r *RemoteDevice) SetParameter(mnemonic string, v []byte) error {
	if v == nil {
		return ErrNullArg
	}
	cmd, err := NewATCommand(mnemonic)
	if err != nil {
		return err
	}
	resp, err := r.atSend(cmd, v)
	if err != nil {
		return err
	}
	if resp.Status != ATStatusOK {
		return &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return nil
}

// ExecuteParameter issues a no-value Remote AT command.
func (r *RemoteDevice) ExecuteParameter(mnemonic string) error {
	cmd, err := NewATCommand(mnemonic)
	if err != nil {
		return err
	}
	resp, err := r.atSend(cmd, nil)
	if err != nil {
		return err
	}
	if resp.Status != ATStatusOK {
		return &ATCommandError{Command: cmd, Status: resp.Status}
	}
	return nil
}

// NodeID lazily fetches and caches the remote's NI value (spec §4.9:
// "Remote devices... may lazily fetch NI/HV/VR over the air").
func (r *RemoteDevice) NodeID() (string, error) {
	r.mu.Lock()
	if r.identity.NodeID != "" {
		defer r.mu.Unlock()
		return r.identity.NodeID, nil
	}
	r.mu.Unlock()

	ni, err := r.GetParameter("NI")
	if err != nil {
		return "", err
	}
	nodeID := nodeIDString(ni)

	r.mu.Lock()
	r.identity.NodeID = nodeID
	r.mu.Unlock()
	return nodeID, nil
}

// HardwareVersion lazily fetches and caches the remote's HV value.
func (r *RemoteDevice) HardwareVersion() (HardwareVersion, error) {
	r.mu.Lock()
	if r.identity.HardwareVersion != HardwareVersionUnknown {
		defer r.mu.Unlock()
		return r.identity.HardwareVersion, nil
	}
	r.mu.Unlock()

	hv, err := r.GetParameter("HV")
	if err != nil {
		return HardwareVersionUnknown, err
	}
	if len(hv) == 0 {
		return HardwareVersionUnknown, ErrOpNotSupported
	}
	version := HardwareVersion(hv[len(hv)-1])

	r.mu.Lock()
	r.identity.HardwareVersion = version
	r.mu.Unlock()
	return version, nil
}

// FirmwareVersion lazily fetches and caches the remote's VR value.
func (r *RemoteDevice) FirmwareVersion() (string, error) {
	r.mu.Lock()
	if r.identity.FirmwareVersion != "" {
		defer r.mu.Unlock()
		return r.identity.FirmwareVersion, nil
	}
	r.mu.Unlock()

	vr, err := r.GetParameter("VR")
	if err != nil {
		return "", err
	}
	if len(vr) == 0 {
		return "", ErrOpNotSupported
	}
	version := firmwareVersionString(vr)

	r.mu.Lock()
	r.identity.FirmwareVersion = version
	r.mu.Unlock()
	return version, nil
}
