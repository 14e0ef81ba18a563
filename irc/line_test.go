package irc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Line
	}{
		{
			name:  "privmsg",
			input: ":nick!user@host PRIVMSG #chan :hello there",
			want: Line{
				Source:     "nick!user@host",
				HasSource:  true,
				Command:    Privmsg,
				Arguments:  []string{"#chan"},
				Message:    "hello there",
				HasMessage: true,
			},
		},
		{
			name:  "ping-without-source",
			input: "PING :abc123",
			want: Line{
				Command:    Ping,
				Message:    "abc123",
				HasMessage: true,
			},
		},
		{
			name:  "welcome-numeric",
			input: ":server 001 nick :Welcome",
			want: Line{
				Source:     "server",
				HasSource:  true,
				Command:    Numeric(1),
				Arguments:  []string{"nick"},
				Message:    "Welcome",
				HasMessage: true,
			},
		},
		{
			name:  "message-only",
			input: ":nick!user@host JOIN :#chan",
			want: Line{
				Source:     "nick!user@host",
				HasSource:  true,
				Command:    Join,
				Message:    "#chan",
				HasMessage: true,
			},
		},
		{
			name:  "arguments-only",
			input: ":server MODE #chan +nt",
			want: Line{
				Source:    "server",
				HasSource: true,
				Command:   Mode,
				Arguments: []string{"#chan", "+nt"},
			},
		},
		{
			name:  "source-without-colon",
			input: "server NOTICE * :*** Looking up your hostname",
			want: Line{
				Source:     "server",
				HasSource:  true,
				Command:    Notice,
				Arguments:  []string{"*"},
				Message:    "*** Looking up your hostname",
				HasMessage: true,
			},
		},
		{
			name:  "empty-trailing-message",
			input: ":nick!user@host PRIVMSG #chan :",
			want: Line{
				Source:     "nick!user@host",
				HasSource:  true,
				Command:    Privmsg,
				Arguments:  []string{"#chan"},
				HasMessage: true,
			},
		},
		{
			name:  "whitespace-run-after-source",
			input: ":server  NOTICE\tnick :hi",
			want: Line{
				Source:     "server",
				HasSource:  true,
				Command:    Notice,
				Arguments:  []string{"nick"},
				Message:    "hi",
				HasMessage: true,
			},
		},
		{
			name:  "colon-inside-message",
			input: ":nick!u@h PRIVMSG #chan :see: this :)",
			want: Line{
				Source:     "nick!u@h",
				HasSource:  true,
				Command:    Privmsg,
				Arguments:  []string{"#chan"},
				Message:    "see: this :)",
				HasMessage: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		kind  ParseErrorKind
		is    error
		token string
	}{
		{name: "no-whitespace", input: "GARBAGE", kind: NoSource, is: ErrNoSource},
		{name: "empty", input: "", kind: NoSource, is: ErrNoSource},
		{name: "source-only", input: ":server QUIT", kind: NoCommand, is: ErrNoCommand},
		{name: "unknown-command", input: ":server BOGUS arg", kind: InvalidCommand, is: ErrInvalidCommand, token: "BOGUS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.input)
			require.ErrorIs(t, err, tt.is)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			require.Equal(t, tt.kind, parseErr.Kind)
			require.Equal(t, tt.token, parseErr.Token)
			require.Equal(t, tt.input, parseErr.Line)
		})
	}
}

func TestLine_Nickname(t *testing.T) {
	t.Parallel()

	nick, ok := Line{Source: "nick!user@host", HasSource: true}.Nickname()
	require.True(t, ok)
	require.Equal(t, "nick", nick)

	_, ok = Line{Source: "irc.example.net", HasSource: true}.Nickname()
	require.False(t, ok, "server sources have no nickname")

	_, ok = Line{}.Nickname()
	require.False(t, ok)
}

func TestLine_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line Line
		want string
	}{
		{
			line: Line{Command: User, Arguments: []string{"AppleTV42", "8", "*"}, Message: "Apple TV Watcher", HasMessage: true},
			want: "USER AppleTV42 8 * :Apple TV Watcher",
		},
		{
			line: Line{Command: Nick, Arguments: []string{"AppleTV42"}},
			want: "NICK AppleTV42",
		},
		{
			line: Line{Command: Pong, Message: "abc123", HasMessage: true},
			want: "PONG :abc123",
		},
		{
			line: Line{Source: "server", HasSource: true, Command: Numeric(1), Arguments: []string{"nick"}, Message: "Welcome", HasMessage: true},
			want: ":server 001 nick :Welcome",
		},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.line.String())
		})
	}
}

func FuzzParseLine(f *testing.F) {
	f.Add(":nick!user@host PRIVMSG #chan :hello there")
	f.Add("PING :abc123")
	f.Add("GARBAGE")

	f.Fuzz(func(t *testing.T, input string) {
		line, err := ParseLine(input)
		if err != nil {
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			return
		}

		require.NotEmpty(t, line.Command.String())
	})
}
