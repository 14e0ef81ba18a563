package irc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSource is returned for lines without any whitespace.
	ErrNoSource = errors.New("irc: line has no source")

	// ErrNoCommand is returned when nothing follows the source.
	ErrNoCommand = errors.New("irc: line has no command after source")

	// ErrInvalidCommand is returned for command tokens that are neither a known verb nor numeric.
	ErrInvalidCommand = errors.New("irc: invalid command")

	// ErrDecode is returned when a chunk read from the transport is not valid UTF-8.
	// The chunk is dropped.
	ErrDecode = errors.New("irc: chunk is not valid utf-8")

	// ErrLineTooLong is returned when the buffered partial line grows beyond the
	// configured maximum. The partial line is discarded up to the next line terminator.
	ErrLineTooLong = errors.New("irc: partial line exceeds maximum length")

	// ErrKeepAliveTimeout is reported when no data arrived within the keep-alive window.
	ErrKeepAliveTimeout = errors.New("irc: keep-alive timeout")

	ErrAlreadyStarted = errors.New("irc: session already started")
	ErrStopped        = errors.New("irc: session stopped while connecting")
)

// ParseErrorKind tells the failing step of ParseLine apart.
type ParseErrorKind int

const (
	NoSource ParseErrorKind = iota
	NoCommand
	InvalidCommand
)

func (k ParseErrorKind) String() string {
	switch k {
	case NoSource:
		return "no source"
	case NoCommand:
		return "no command"
	case InvalidCommand:
		return "invalid command"
	}

	return "unknown"
}

// ParseError describes a line ParseLine could not handle.
type ParseError struct {
	Kind  ParseErrorKind
	Token string // offending command token, only set for InvalidCommand
	Line  string
}

func (e *ParseError) Error() string {
	if e.Kind == InvalidCommand {
		return fmt.Sprintf("irc: invalid command %q in line %q", e.Token, e.Line)
	}

	return fmt.Sprintf("irc: %s in line %q", e.Kind, e.Line)
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrNoSource:
		return e.Kind == NoSource
	case ErrNoCommand:
		return e.Kind == NoCommand
	case ErrInvalidCommand:
		return e.Kind == InvalidCommand
	}

	return false
}

// TransportError wraps a failure of the underlying byte stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("irc: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
