package modem

import (
	"errors"
	"fmt"
	"time"

	"i4.energy/across/ltemodem/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when the Dialer hands back no Transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that is not
	// connected.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrNotConnected is returned when a command is submitted while the
	// connection is down or in the error state.
	//
	// A connection in the error state must be Reset before it can be used
	// again.
	ErrNotConnected = errors.New("modem not connected")

	// ErrSIMPinRequired is returned when the SIM card requires a PIN and no
	// PIN was provided in the Config.
	//
	// Callers may handle this error specially (for example, by prompting
	// the user for a PIN) and retry initialization.
	ErrSIMPinRequired = errors.New("SIM PIN required")

	// ErrLineTooLong is logged when a modem response line exceeds the
	// maximum allowed length.
	//
	// This typically indicates malformed input, unexpected binary data,
	// or a protocol framing error.
	ErrLineTooLong = errors.New("response line too long")

	// ErrLoopRunning is returned when Run is called on a Session that is
	// already running.
	ErrLoopRunning = errors.New("session loop already running")

	// ErrTimeout is matched by every TimeoutError.
	ErrTimeout = errors.New("command timed out")

	// ErrCommandFailed is matched by every CommandError.
	ErrCommandFailed = errors.New("command failed")

	// ErrUnexpectedPrompt is returned when the modem asks for message input
	// after a command that carries no body. The input is cancelled with ESC.
	ErrUnexpectedPrompt = errors.New("unexpected input prompt")

	// ErrNoPrompt is returned when a message command completes without the
	// modem asking for its body.
	ErrNoPrompt = errors.New("no input prompt")

	// ErrInvalidTransition is returned when a state machine event is not
	// allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnexpectedResponse is returned when a command succeeds but its
	// response does not have the expected shape.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// ChannelError reports a failure of the underlying byte channel. It is fatal
// to the session.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// TimeoutError reports a command without a final result before its deadline.
// Queued is set when the deadline passed before the command was written.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Queued  bool
}

func (e *TimeoutError) Error() string {
	if e.Queued {
		return fmt.Sprintf("command %q timed out after %s while queued", e.Command, e.Timeout)
	}
	return fmt.Sprintf("command %q timed out after %s", e.Command, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// CommandError reports a command that completed with an error result.
type CommandError struct {
	Command string
	Final   at.Final
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed: %s", e.Command, e.Final.Text)
}

func (e *CommandError) Unwrap() error { return ErrCommandFailed }
