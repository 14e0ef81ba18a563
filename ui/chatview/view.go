// Package chatview renders session events as terminal chat lines.
package chatview

import (
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/diamondclub/watcher/irc"
	"github.com/diamondclub/watcher/save/messagelog"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
)

const (
	DefaultNickWidth = 14
	separator        = " │ "
	systemNick       = "*"
)

var nickPalette = []string{"33", "39", "45", "75", "99", "135", "141", "170", "178", "203", "209", "214", "112", "149"}

type View struct {
	mu     sync.Mutex
	out    io.Writer
	logger zerolog.Logger

	nickWidth int
	width     int
	now       func() time.Time

	server     string
	transcript chan<- *messagelog.Record

	renderer    *lipgloss.Renderer
	systemStyle lipgloss.Style
	errorStyle  lipgloss.Style
	timeStyle   lipgloss.Style
}

type Option func(*View)

// WithTranscript forwards every chat message to records. Messages are
// dropped when records is full.
func WithTranscript(records chan<- *messagelog.Record, server string) Option {
	return func(v *View) {
		v.transcript = records
		v.server = server
	}
}

func WithNickWidth(width int) Option {
	return func(v *View) {
		v.nickWidth = width
	}
}

// WithWidth wraps messages to the terminal width. Zero disables wrapping.
func WithWidth(width int) Option {
	return func(v *View) {
		v.width = width
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *View) {
		v.now = now
	}
}

func New(out io.Writer, logger zerolog.Logger, opts ...Option) *View {
	v := &View{
		out:       out,
		logger:    logger.With().Str("component", "chatview").Logger(),
		nickWidth: DefaultNickWidth,
		now:       time.Now,
		renderer:  lipgloss.NewRenderer(out),
	}

	for _, opt := range opts {
		opt(v)
	}

	v.systemStyle = v.renderer.NewStyle().Faint(true)
	v.errorStyle = v.renderer.NewStyle().Foreground(lipgloss.Color("203"))
	v.timeStyle = v.renderer.NewStyle().Foreground(lipgloss.Color("245"))

	return v
}

func (v *View) OnChatMessage(msg irc.ChatMessage) {
	sentAt := v.now()

	nick := v.renderer.NewStyle().Foreground(lipgloss.Color(colorFor(msg.Username))).Render(v.fitNick(msg.Username))
	v.print(sentAt, nick, sanitize(msg.Message), v.renderer.NewStyle())

	if v.transcript == nil {
		return
	}

	record := &messagelog.Record{
		Server:   v.server,
		Target:   msg.Target,
		Username: msg.Username,
		Message:  msg.Message,
		SentAt:   sentAt.UTC(),
	}

	select {
	case v.transcript <- record:
	default:
		v.logger.Warn().Str("user", msg.Username).Msg("transcript full, dropping message")
	}
}

func (v *View) OnCommand(line irc.Line) {
	text, ok := describe(line)
	if !ok {
		v.logger.Debug().Str("line", line.String()).Msg("ignored command")
		return
	}

	v.print(v.now(), v.systemStyle.Render(v.fitNick(systemNick)), sanitize(text), v.systemStyle)
}

func (v *View) OnError(err error) {
	v.logger.Warn().Err(err).Msg("session reported error")
	v.print(v.now(), v.errorStyle.Render(v.fitNick("!")), err.Error(), v.errorStyle)
}

func (v *View) OnStreamEnd() {
	v.logger.Info().Msg("stream ended")
	v.print(v.now(), v.systemStyle.Render(v.fitNick(systemNick)), "disconnected from chat", v.systemStyle)
}

func (v *View) print(at time.Time, nick string, message string, style lipgloss.Style) {
	prefix := v.timeStyle.Render(at.Local().Format("15:04:05")) + " " + nick + separator
	prefixWidth := 9 + v.nickWidth + runewidth.StringWidth(separator)

	lines := []string{message}
	if limit := v.width - prefixWidth; v.width > 0 && limit > 0 {
		lines = strings.Split(runewidth.Wrap(message, limit), "\n")
	}

	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString(prefix)
		} else {
			b.WriteString(strings.Repeat(" ", prefixWidth))
		}
		b.WriteString(style.Render(line))
		b.WriteByte('\n')
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := io.WriteString(v.out, b.String()); err != nil {
		v.logger.Error().Err(err).Msg("failed to write chat line")
	}
}

// fitNick pads or truncates nick to exactly nickWidth cells.
func (v *View) fitNick(nick string) string {
	if runewidth.StringWidth(nick) > v.nickWidth {
		nick = runewidth.Truncate(nick, v.nickWidth, "…")
	}

	return runewidth.FillLeft(nick, v.nickWidth)
}

func describe(line irc.Line) (string, bool) {
	nick, ok := line.Nickname()
	if !ok {
		nick = line.Source
	}

	switch {
	case line.Command.Is(irc.RplTopic) && line.HasMessage:
		return "topic: " + line.Message, true
	case line.Command == irc.Join:
		return nick + " joined", true
	case line.Command == irc.Part:
		return nick + " left", true
	case line.Command == irc.Quit:
		if line.Message != "" {
			return fmt.Sprintf("%s quit (%s)", nick, line.Message), true
		}
		return nick + " quit", true
	case line.Command == irc.Kick && len(line.Arguments) > 1:
		return fmt.Sprintf("%s was kicked by %s", line.Arguments[1], nick), true
	case line.Command == irc.Notice && line.HasMessage:
		return "notice: " + line.Message, true
	case line.Command == irc.Error && line.HasMessage:
		return "server error: " + line.Message, true
	case line.Command == irc.Privmsg && line.HasMessage:
		return line.Source + ": " + line.Message, true
	}

	return "", false
}

// colorFor maps a nickname to a stable palette color.
func colorFor(nick string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(nick)))
	return nickPalette[h.Sum32()%uint32(len(nickPalette))]
}

// filter non printable characters
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}

		return -1
	}, s)
}
