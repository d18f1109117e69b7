package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"baudsniffer/settings"

	"go.bug.st/serial"
)

// Port is the subset of go.bug.st/serial.Port a probe needs
type Port interface {
	io.Reader
	io.Closer
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a named port with the given mode
type Opener func(name string, mode *serial.Mode) (Port, error)

// OpenPort opens a real serial port using go.bug.st/serial
func OpenPort(name string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Transport-level failures, matched with errors.Is against a *ChannelError
var (
	ErrPortBusy         = errors.New("serial port busy")
	ErrPortNotFound     = errors.New("serial port not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial port")
)

// ChannelError reports a transport failure during one probe. A probe that
// simply receives no bytes is not a ChannelError.
type ChannelError struct {
	Port string
	Op   string // "open", "configure" or "read"
	Err  error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Is maps go.bug.st/serial port error codes onto the package sentinels
func (e *ChannelError) Is(target error) bool {
	var portErr *serial.PortError
	if !errors.As(e.Err, &portErr) {
		return false
	}

	switch portErr.Code() {
	case serial.PortBusy:
		return target == ErrPortBusy
	case serial.PortNotFound:
		return target == ErrPortNotFound
	case serial.PermissionDenied:
		return target == ErrPermissionDenied
	}
	return false
}

// ModeFor converts a probe request into the serial.Mode used to open the port
func ModeFor(req ProbeRequest) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: req.BaudRate,
		DataBits: req.Setting.ByteSize,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	switch req.Setting.Parity {
	case settings.ParityEven:
		mode.Parity = serial.EvenParity
	case settings.ParityOdd:
		mode.Parity = serial.OddParity
	case settings.ParityMark:
		mode.Parity = serial.MarkParity
	case settings.ParitySpace:
		mode.Parity = serial.SpaceParity
	}

	if req.Setting.StopBits == settings.StopBitsTwo {
		mode.StopBits = serial.TwoStopBits
	}

	return mode
}
