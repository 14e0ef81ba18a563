package irc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultRealName     = "Apple TV Watcher"
	DefaultWriteTimeout = 30 * time.Second
	CloseMessage        = "Live stream closed."

	readBufferSize = 8096
)

// State is the registration state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistering
	StateJoined
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistering:
		return "registering"
	case StateJoined:
		return "joined"
	case StateClosing:
		return "closing"
	}

	return "unknown"
}

type Config struct {
	Host     string
	Port     int
	Channel  string // without leading #
	Nickname string
	RealName string

	// WriteTimeout bounds every outbound line.
	WriteTimeout time.Duration
	// MaxLineLength bounds the buffered partial line, 0 disables the limit.
	MaxLineLength int
	// KeepAlive closes the session when nothing was received for this long, 0 disables it.
	KeepAlive time.Duration
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) withDefaults() Config {
	if c.RealName == "" {
		c.RealName = DefaultRealName
	}

	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}

	return c
}

type Option func(*Session)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithDispatcher sets the context handler callbacks run on. By default each
// session owns a SerialDispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Session) {
		s.dispatcher = d
	}
}

// Session is a single IRC connection that registers, joins one channel and
// reports what it receives to a Handler.
type Session struct {
	cfg       Config
	transport Transport
	handler   Handler
	logger    zerolog.Logger

	dispatcher      Dispatcher
	ownedDispatcher *SerialDispatcher

	decoder *LineDecoder

	ctx    context.Context
	cancel context.CancelFunc

	state    atomic.Int32
	started  atomic.Bool
	closing  atomic.Bool
	timedOut atomic.Bool

	lastActivity atomic.Int64 // unix nanos of the last read

	writeMu  sync.Mutex
	stopOnce sync.Once
	done     chan struct{} // closed when the read loop exited
}

func NewSession(cfg Config, transport Transport, handler Handler, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		cfg:       cfg.withDefaults(),
		transport: transport,
		handler:   handler,
		logger:    zerolog.Nop(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.dispatcher == nil {
		s.ownedDispatcher = NewSerialDispatcher()
		s.dispatcher = s.ownedDispatcher
	}

	s.decoder = NewLineDecoder(s.cfg.MaxLineLength)
	s.logger = s.logger.With().Str("component", "irc").Str("channel", s.cfg.Channel).Logger()

	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Channel() string {
	return s.cfg.Channel
}

func (s *Session) Nickname() string {
	return s.cfg.Nickname
}

func (s *Session) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	if prev != state {
		s.logger.Debug().Stringer("from", prev).Stringer("to", state).Msg("state changed")
	}
}

func (s *Session) transition(from, to State) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}

	s.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("state changed")
	return true
}

// Start connects, starts reading and sends the registration request.
// A connect failure is reported to the handler and returned.
func (s *Session) Start(ctx context.Context) error {
	if s.started.Swap(true) {
		return ErrAlreadyStarted
	}

	s.setState(StateConnecting)
	s.logger.Info().Str("addr", s.cfg.Addr()).Msg("connecting")

	// Stop aborts a pending connect
	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unwatch := context.AfterFunc(s.ctx, cancel)
	defer unwatch()

	err := s.transport.Connect(connectCtx, s.cfg.Addr())

	if s.closing.Load() {
		if err == nil {
			_ = s.transport.Close()
		}
		close(s.done)
		return ErrStopped
	}

	if err != nil {
		terr := &TransportError{Op: "connect", Err: err}
		s.setState(StateDisconnected)
		s.reportError(terr)
		close(s.done)
		return terr
	}

	s.lastActivity.Store(time.Now().UnixNano())
	s.transition(StateConnecting, StateRegistering)

	go s.readLoop()

	if s.cfg.KeepAlive > 0 {
		go s.watchKeepAlive()
	}

	_ = s.write(Line{
		Command:    User,
		Arguments:  []string{s.cfg.Nickname, "8", "*"},
		Message:    s.cfg.RealName,
		HasMessage: true,
	})
	_ = s.write(Line{Command: Nick, Arguments: []string{s.cfg.Nickname}})

	return nil
}

// Stop parts the channel, quits and closes the transport without waiting for
// acknowledgements. It is safe to call in any state and more than once; only
// the first call has an effect.
func (s *Session) Stop() error {
	var err error

	s.stopOnce.Do(func() {
		s.closing.Store(true)
		s.setState(StateClosing)

		errPart := s.write(Line{
			Command:    Part,
			Arguments:  []string{"#" + s.cfg.Channel},
			Message:    CloseMessage,
			HasMessage: true,
		})
		errQuit := s.write(Line{Command: Quit, Message: CloseMessage, HasMessage: true})

		errClose := s.transport.Close()
		if errClose != nil {
			errClose = &TransportError{Op: "close", Err: errClose}
		}

		s.cancel()

		if s.started.Load() {
			select {
			case <-s.done:
			case <-time.After(s.cfg.WriteTimeout):
				s.logger.Warn().Msg("read loop did not exit after close")
			}
		}

		s.setState(StateDisconnected)
		s.logger.Info().Msg("session stopped")

		if s.ownedDispatcher != nil {
			s.ownedDispatcher.Close()
		}

		err = errors.Join(errPart, errQuit, errClose)
	})

	return err
}

// Done is closed once the session no longer reads from the server.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send writes a raw line. It fails once the session is disconnected.
func (s *Session) Send(line Line) error {
	if s.State() == StateDisconnected {
		return &TransportError{Op: fmt.Sprintf("write %s", line.Command), Err: ErrNotConnected}
	}

	return s.write(line)
}

// Privmsg says text in the joined channel.
func (s *Session) Privmsg(text string) error {
	return s.Send(Line{
		Command:    Privmsg,
		Arguments:  []string{"#" + s.cfg.Channel},
		Message:    text,
		HasMessage: true,
	})
}

func (s *Session) write(line Line) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.transport.Write(ctx, []byte(line.String()+"\r\n")); err != nil {
		terr := &TransportError{Op: fmt.Sprintf("write %s", line.Command), Err: err}
		s.reportError(terr)
		return terr
	}

	s.logger.Trace().Str("line", line.String()).Msg("sent")
	return nil
}

func (s *Session) readLoop() {
	defer close(s.done)

	buf := make([]byte, readBufferSize)

	for {
		n, err := s.transport.Read(buf)
		if n > 0 {
			s.lastActivity.Store(time.Now().UnixNano())
			s.consume(buf[:n])
		}

		if err == nil {
			continue
		}

		switch {
		case s.timedOut.Load():
			s.endStream()
		case s.closing.Load():
			s.logger.Debug().Err(err).Msg("read loop ended by stop")
		case errors.Is(err, io.EOF):
			s.endStream()
		default:
			s.logger.Error().Err(err).Msg("read failed")
			s.setState(StateDisconnected)
			s.reportError(&TransportError{Op: "read", Err: err})
		}

		return
	}
}

func (s *Session) endStream() {
	s.logger.Info().Msg("stream ended")

	if !s.closing.Load() {
		s.setState(StateDisconnected)
	}

	s.dispatcher.Dispatch(s.handler.OnStreamEnd)
}

func (s *Session) consume(chunk []byte) {
	lines, err := s.decoder.Feed(chunk)

	for _, raw := range lines {
		line, err := ParseLine(raw)
		if err != nil {
			s.logger.Warn().Err(err).Msg("could not parse line")
			s.reportError(err)
			continue
		}

		s.handleLine(line)
	}

	if err != nil {
		s.logger.Warn().Err(err).Int("chunk_size", len(chunk)).Msg("could not decode chunk")
		s.reportError(err)
	}
}

func (s *Session) handleLine(line Line) {
	switch {
	case line.Command == Ping && line.HasMessage:
		_ = s.write(Line{Command: Pong, Message: line.Message, HasMessage: true})
	case line.Command.Is(RplWelcome):
		if s.transition(StateRegistering, StateJoined) {
			s.logger.Info().Msg("registered, joining channel")
			_ = s.write(Line{Command: Join, Arguments: []string{"#" + s.cfg.Channel}})
		}
	}

	if nick, ok := line.Nickname(); ok && line.Command == Privmsg && line.HasMessage {
		msg := ChatMessage{Username: nick, Message: line.Message}
		if len(line.Arguments) > 0 {
			msg.Target = line.Arguments[0]
		}

		s.dispatcher.Dispatch(func() { s.handler.OnChatMessage(msg) })
		return
	}

	s.dispatcher.Dispatch(func() { s.handler.OnCommand(line) })
}

func (s *Session) reportError(err error) {
	s.dispatcher.Dispatch(func() { s.handler.OnError(err) })
}

func (s *Session) watchKeepAlive() {
	timer := time.NewTimer(s.cfg.KeepAlive)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.done:
			return
		case <-timer.C:
			idle := time.Since(time.Unix(0, s.lastActivity.Load()))
			if idle < s.cfg.KeepAlive {
				timer.Reset(s.cfg.KeepAlive - idle)
				continue
			}

			s.logger.Warn().Dur("idle", idle).Msg("keep-alive timeout, closing transport")
			s.timedOut.Store(true)
			s.reportError(ErrKeepAliveTimeout)

			if err := s.transport.Close(); err != nil {
				s.logger.Error().Err(err).Msg("could not close transport")
			}
			return
		}
	}
}
