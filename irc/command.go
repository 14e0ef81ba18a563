package irc

import (
	"fmt"
	"strconv"
)

// Numeric replies the session or presenters react to.
const (
	RplWelcome       = 1
	RplTopic         = 332
	RplNamReply      = 353
	RplMOTD          = 372
	RplMOTDStart     = 375
	RplEndOfMOTD     = 376
	ErrNotRegistered = 451
)

// Command is an IRC verb or a numeric reply code. Commands are comparable,
// so parsed commands can be matched against the package level verbs with ==.
type Command struct {
	token   string
	code    int
	numeric bool
}

var (
	User    = Command{token: "USER"}
	Nick    = Command{token: "NICK"}
	Ping    = Command{token: "PING"}
	Pong    = Command{token: "PONG"}
	Join    = Command{token: "JOIN"}
	Privmsg = Command{token: "PRIVMSG"}
	Kick    = Command{token: "KICK"}
	Quit    = Command{token: "QUIT"}
	Part    = Command{token: "PART"}
	Mode    = Command{token: "MODE"}
	Notice  = Command{token: "NOTICE"}
	Error   = Command{token: "ERROR"}
)

var verbs = map[string]Command{
	User.token:    User,
	Nick.token:    Nick,
	Ping.token:    Ping,
	Pong.token:    Pong,
	Join.token:    Join,
	Privmsg.token: Privmsg,
	Kick.token:    Kick,
	Quit.token:    Quit,
	Part.token:    Part,
	Mode.token:    Mode,
	Notice.token:  Notice,
	Error.token:   Error,
}

// Numeric returns the command for a numeric reply code, rendered with three digits.
func Numeric(code int) Command {
	return Command{token: fmt.Sprintf("%03d", code), code: code, numeric: true}
}

// ParseCommand resolves a wire token. Verbs are matched case-sensitively;
// anything else must be an integer.
func ParseCommand(token string) (Command, error) {
	if cmd, ok := verbs[token]; ok {
		return cmd, nil
	}

	code, err := strconv.Atoi(token)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, token)
	}

	return Command{token: token, code: code, numeric: true}, nil
}

// String returns the wire token. Parsed numerics keep the token they were
// parsed from.
func (c Command) String() string {
	return c.token
}

func (c Command) IsNumeric() bool {
	return c.numeric
}

// Code returns the numeric reply code, or 0 for verbs.
func (c Command) Code() int {
	return c.code
}

// Is reports whether c is the numeric reply code.
func (c Command) Is(code int) bool {
	return c.numeric && c.code == code
}
