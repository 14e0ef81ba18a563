package irc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeTransport serves reads from a channel and records writes.
type fakeTransport struct {
	reads chan []byte // closing it ends the stream

	connectErr error
	writeErr   error

	mu      sync.Mutex
	writes  []string
	closed  bool
	closeCh chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		reads:   make(chan []byte, 16),
		closeCh: make(chan struct{}),
	}
}

func (f *fakeTransport) Connect(context.Context, string) error {
	return f.connectErr
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	select {
	case chunk, ok := <-f.reads:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, chunk), nil
	case <-f.closeCh:
		return 0, net.ErrClosed
	}
}

func (f *fakeTransport) Write(_ context.Context, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return f.writeErr
	}

	f.writes = append(f.writes, string(p))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.closeCh)
	}

	return nil
}

func (f *fakeTransport) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.writes...)
}

func (f *fakeTransport) send(chunk string) {
	f.reads <- []byte(chunk)
}

// recorder collects handler callbacks.
type recorder struct {
	mu        sync.Mutex
	commands  []Line
	chats     []ChatMessage
	errs      []error
	streamEnd int
}

func (r *recorder) OnCommand(line Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, line)
}

func (r *recorder) OnChatMessage(msg ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, msg)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) OnStreamEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamEnd++
}

func (r *recorder) Commands() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Line(nil), r.commands...)
}

func (r *recorder) Chats() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChatMessage(nil), r.chats...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) StreamEnded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamEnd
}

var testConfig = Config{
	Host:     "irc.example.net",
	Port:     6667,
	Channel:  "test",
	Nickname: "AppleTV42",
}

func startSession(t *testing.T, cfg Config) (*Session, *fakeTransport, *recorder) {
	t.Helper()

	transport := newFakeTransport()
	rec := &recorder{}

	s := NewSession(cfg, transport, rec, WithDispatcher(Immediate))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	return s, transport, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestSession_Start_Registers(t *testing.T) {
	t.Parallel()

	s, transport, _ := startSession(t, testConfig)

	require.Equal(t, []string{
		"USER AppleTV42 8 * :Apple TV Watcher\r\n",
		"NICK AppleTV42\r\n",
	}, transport.Writes())
	require.Equal(t, StateRegistering, s.State())
}

func TestSession_Welcome_JoinsOnce(t *testing.T) {
	t.Parallel()

	s, transport, rec := startSession(t, testConfig)

	transport.send(":server 001 AppleTV42 :Welcome\r\n")
	waitFor(t, func() bool { return len(rec.Commands()) == 1 })

	require.Equal(t, StateJoined, s.State())
	require.Equal(t, "JOIN #test\r\n", transport.Writes()[2])

	// a second welcome does not join again
	transport.send(":server 001 AppleTV42 :Welcome again\r\n")
	waitFor(t, func() bool { return len(rec.Commands()) == 2 })

	require.Len(t, transport.Writes(), 3)
	require.True(t, rec.Commands()[0].Command.Is(RplWelcome))
}

func TestSession_Ping_Pong(t *testing.T) {
	t.Parallel()

	_, transport, rec := startSession(t, testConfig)

	transport.send("PING :abc123\r\n")
	waitFor(t, func() bool { return len(rec.Commands()) == 1 })

	writes := transport.Writes()
	require.Len(t, writes, 3)
	require.Equal(t, "PONG :abc123\r\n", writes[2])

	require.Equal(t, Ping, rec.Commands()[0].Command)
	require.Empty(t, rec.Chats())
	require.Empty(t, rec.Errors())
}

func TestSession_ChatMessage(t *testing.T) {
	t.Parallel()

	_, transport, rec := startSession(t, testConfig)

	transport.send(":nick!user@host PRIVMSG #test :hello there\r\n:server NOTICE #test :not a chat\r\n")
	waitFor(t, func() bool { return len(rec.Chats()) == 1 && len(rec.Commands()) == 1 })

	require.Equal(t, ChatMessage{Username: "nick", Target: "#test", Message: "hello there"}, rec.Chats()[0])
	require.Equal(t, Notice, rec.Commands()[0].Command)
}

func TestSession_PrivmsgFromServer_IsCommand(t *testing.T) {
	t.Parallel()

	_, transport, rec := startSession(t, testConfig)

	transport.send(":irc.example.net PRIVMSG AppleTV42 :server says hi\r\n")
	waitFor(t, func() bool { return len(rec.Commands()) == 1 })

	require.Empty(t, rec.Chats())
	require.Equal(t, Privmsg, rec.Commands()[0].Command)
}

func TestSession_SplitChunks(t *testing.T) {
	t.Parallel()

	_, transport, rec := startSession(t, testConfig)

	transport.send(":a NOTICE x :one\r\n:b NOTICE x :two\r\n:c NOTI")
	transport.send("CE x :three\r\n")
	waitFor(t, func() bool { return len(rec.Commands()) == 3 })

	var messages []string
	for _, line := range rec.Commands() {
		messages = append(messages, line.Message)
	}

	require.Equal(t, []string{"one", "two", "three"}, messages)
}

func TestSession_ParseError_DoesNotStopProcessing(t *testing.T) {
	t.Parallel()

	_, transport, rec := startSession(t, testConfig)

	transport.send("GARBAGE\r\n:nick!u@h PRIVMSG #test :after garbage\r\n")
	transport.send(":server BOGUS x\r\n:nick!u@h PRIVMSG #test :later chunk\r\n")
	waitFor(t, func() bool { return len(rec.Chats()) == 2 })

	errs := rec.Errors()
	require.Len(t, errs, 2)
	require.ErrorIs(t, errs[0], ErrNoSource)
	require.ErrorIs(t, errs[1], ErrInvalidCommand)
}

func TestSession_DecodeError(t *testing.T) {
	t.Parallel()

	_, transport, rec := startSession(t, testConfig)

	transport.reads <- []byte{0xff, 0xfe, 0xfd, '\r', '\n'}
	transport.send(":nick!u@h PRIVMSG #test :still here\r\n")
	waitFor(t, func() bool { return len(rec.Chats()) == 1 })

	require.Len(t, rec.Errors(), 1)
	require.ErrorIs(t, rec.Errors()[0], ErrDecode)
}

func TestSession_StreamEnd(t *testing.T) {
	t.Parallel()

	s, transport, rec := startSession(t, testConfig)

	transport.send(":server 001 AppleTV42 :Welcome\r\n")
	close(transport.reads)
	waitFor(t, func() bool { return rec.StreamEnded() == 1 })

	require.Equal(t, StateDisconnected, s.State())
	require.Empty(t, rec.Errors())
}

func TestSession_WriteError_IsReported(t *testing.T) {
	t.Parallel()

	s, transport, rec := startSession(t, testConfig)

	transport.mu.Lock()
	transport.writeErr = errors.New("broken pipe")
	transport.mu.Unlock()

	transport.send("PING :abc\r\n")
	waitFor(t, func() bool { return len(rec.Errors()) == 1 })

	var terr *TransportError
	require.ErrorAs(t, rec.Errors()[0], &terr)
	require.Equal(t, "write PONG", terr.Op)

	// reading goes on
	transport.send(":nick!u@h PRIVMSG #test :hi\r\n")
	waitFor(t, func() bool { return len(rec.Chats()) == 1 })
	require.Equal(t, StateRegistering, s.State())
}

func TestSession_ConnectError(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	transport.connectErr = errors.New("connection refused")
	rec := &recorder{}

	s := NewSession(testConfig, transport, rec, WithDispatcher(Immediate))

	err := s.Start(context.Background())
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "connect", terr.Op)
	require.Len(t, rec.Errors(), 1)
	require.Equal(t, StateDisconnected, s.State())
	require.Empty(t, transport.Writes())

	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestSession_Stop(t *testing.T) {
	t.Parallel()

	s, transport, rec := startSession(t, testConfig)

	transport.send(":server 001 AppleTV42 :Welcome\r\n")
	waitFor(t, func() bool { return s.State() == StateJoined })

	// read is in flight while stopping
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	writes := transport.Writes()
	require.Equal(t, []string{
		"PART #test :Live stream closed.\r\n",
		"QUIT :Live stream closed.\r\n",
	}, writes[len(writes)-2:])
	require.True(t, transport.closed)
	require.Equal(t, StateDisconnected, s.State())
	require.Zero(t, rec.StreamEnded())
	require.Empty(t, rec.Errors())
}

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Connect(ctx context.Context, addr string) error {
	return m.Called(ctx, addr).Error(0)
}

func (m *mockTransport) Read(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *mockTransport) Write(ctx context.Context, p []byte) error {
	return m.Called(ctx, string(p)).Error(0)
}

func (m *mockTransport) Close() error {
	return m.Called().Error(0)
}

func TestSession_Stop_Order(t *testing.T) {
	t.Parallel()

	transport := &mockTransport{}
	mock.InOrder(
		transport.On("Write", mock.Anything, "PART #test :Live stream closed.\r\n").Return(nil).Once(),
		transport.On("Write", mock.Anything, "QUIT :Live stream closed.\r\n").Return(nil).Once(),
		transport.On("Close").Return(nil).Once(),
	)

	s := NewSession(testConfig, transport, HandlerFuncs{}, WithDispatcher(Immediate))
	require.NoError(t, s.Stop())

	transport.AssertExpectations(t)
	require.Equal(t, StateDisconnected, s.State())
}

func TestSession_Stop_ReportsWriteFailures(t *testing.T) {
	t.Parallel()

	transport := &mockTransport{}
	transport.On("Write", mock.Anything, mock.Anything).Return(net.ErrClosed).Twice()
	transport.On("Close").Return(nil).Once()

	rec := &recorder{}
	s := NewSession(testConfig, transport, rec, WithDispatcher(Immediate))

	err := s.Stop()
	require.ErrorIs(t, err, net.ErrClosed)
	require.Len(t, rec.Errors(), 2)
	transport.AssertExpectations(t)
}

func TestSession_KeepAliveTimeout(t *testing.T) {
	t.Parallel()

	cfg := testConfig
	cfg.KeepAlive = 50 * time.Millisecond

	s, _, rec := startSession(t, cfg)

	waitFor(t, func() bool { return rec.StreamEnded() == 1 })

	require.Len(t, rec.Errors(), 1)
	require.ErrorIs(t, rec.Errors()[0], ErrKeepAliveTimeout)
	require.Equal(t, StateDisconnected, s.State())
}

func TestSession_SerialDispatcher(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	chats := make(chan ChatMessage, 4)

	s := NewSession(testConfig, transport, HandlerFuncs{
		ChatMessage: func(msg ChatMessage) { chats <- msg },
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	transport.send(":a!u@h PRIVMSG #test :1\r\n:b!u@h PRIVMSG #test :2\r\n")

	for _, want := range []string{"1", "2"} {
		select {
		case msg := <-chats:
			require.Equal(t, want, msg.Message)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for chat message")
		}
	}
}

func TestSession_Privmsg(t *testing.T) {
	t.Parallel()

	s, transport, _ := startSession(t, testConfig)

	require.NoError(t, s.Privmsg("hello chat"))
	require.Equal(t, "PRIVMSG #test :hello chat\r\n", transport.Writes()[2])
}

func TestSession_ReadError_Disconnects(t *testing.T) {
	t.Parallel()

	s, transport, rec := startSession(t, testConfig)

	transport.send(":server 001 AppleTV42 :Welcome\r\n")
	waitFor(t, func() bool { return s.State() == StateJoined })

	// connection drops without Stop
	require.NoError(t, transport.Close())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("read loop did not exit")
	}

	require.Equal(t, StateDisconnected, s.State())
	require.Len(t, rec.Errors(), 1)

	var terr *TransportError
	require.ErrorAs(t, rec.Errors()[0], &terr)
	require.Equal(t, "read", terr.Op)
	require.ErrorIs(t, terr, net.ErrClosed)
	require.Zero(t, rec.StreamEnded())

	err := s.Privmsg("anyone there?")
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "write PRIVMSG", terr.Op)
	require.Len(t, rec.Errors(), 1)
}

// slowConnectTransport blocks in Connect until released or cancelled.
type slowConnectTransport struct {
	*fakeTransport

	entered     chan struct{}
	release     chan struct{}
	ignoreAbort bool
}

func newSlowConnectTransport() *slowConnectTransport {
	return &slowConnectTransport{
		fakeTransport: newFakeTransport(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (t *slowConnectTransport) Connect(ctx context.Context, _ string) error {
	close(t.entered)

	if t.ignoreAbort {
		<-t.release
		return nil
	}

	select {
	case <-t.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSession_StopWhileConnecting_CancelsConnect(t *testing.T) {
	t.Parallel()

	transport := newSlowConnectTransport()
	rec := &recorder{}
	s := NewSession(testConfig, transport, rec, WithDispatcher(Immediate))

	started := make(chan error, 1)
	go func() { started <- s.Start(context.Background()) }()
	<-transport.entered

	begin := time.Now()
	_ = s.Stop()
	require.Less(t, time.Since(begin), time.Second)

	require.ErrorIs(t, <-started, ErrStopped)
	require.Equal(t, StateDisconnected, s.State())
	require.Empty(t, rec.Errors())
}

func TestSession_StopWhileConnecting_SkipsReadLoop(t *testing.T) {
	t.Parallel()

	transport := newSlowConnectTransport()
	transport.ignoreAbort = true
	rec := &recorder{}
	s := NewSession(testConfig, transport, rec, WithDispatcher(Immediate))

	started := make(chan error, 1)
	go func() { started <- s.Start(context.Background()) }()
	<-transport.entered

	stopped := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(stopped)
	}()

	// the connect succeeds only after Stop marked the session closing
	waitFor(t, func() bool { return s.State() == StateClosing })
	close(transport.release)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop waited for a read loop that never ran")
	}

	require.ErrorIs(t, <-started, ErrStopped)
	require.True(t, transport.closed)
	for _, w := range transport.Writes() {
		require.NotContains(t, w, "USER")
		require.NotContains(t, w, "NICK")
	}
	require.Empty(t, rec.Errors())
}
