package irc

import (
	"errors"
	"strings"
	"unicode"
)

// Line is one decoded protocol line.
//
//	:source COMMAND arg1 arg2 :trailing message
//	COMMAND :message
type Line struct {
	Source    string
	HasSource bool

	Command   Command
	Arguments []string

	Message    string
	HasMessage bool
}

// Nickname returns the nickname part of a nick!user@host source.
func (l Line) Nickname() (string, bool) {
	if !l.HasSource {
		return "", false
	}

	nick, _, found := strings.Cut(l.Source, "!")
	if !found {
		return "", false
	}

	return nick, true
}

// String renders the line in wire form without the terminator.
func (l Line) String() string {
	var b strings.Builder

	if l.HasSource {
		b.WriteByte(':')
		b.WriteString(l.Source)
		b.WriteByte(' ')
	}

	b.WriteString(l.Command.String())

	if len(l.Arguments) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(l.Arguments, " "))
	}

	if l.HasMessage {
		b.WriteString(" :")
		b.WriteString(l.Message)
	}

	return b.String()
}

// ParseLine parses a single line without its terminator.
func ParseLine(line string) (Line, error) {
	first, rest, ok := cutSpace(line)
	if !ok {
		return Line{}, &ParseError{Kind: NoSource, Line: line}
	}

	// PING :token and friends carry no source
	if cmd, err := ParseCommand(first); err == nil && strings.HasPrefix(rest, ":") {
		return Line{
			Command:    cmd,
			Message:    rest[1:],
			HasMessage: true,
		}, nil
	}

	parsed := Line{
		Source:    strings.TrimPrefix(first, ":"),
		HasSource: true,
	}

	token, afterCommand, ok := cutSpace(rest)
	if !ok {
		return Line{}, &ParseError{Kind: NoCommand, Line: line}
	}

	cmd, err := ParseCommand(token)
	if err != nil {
		if errors.Is(err, ErrInvalidCommand) {
			return Line{}, &ParseError{Kind: InvalidCommand, Token: token, Line: line}
		}
		return Line{}, err
	}

	parsed.Command = cmd

	if args, message, found := strings.Cut(afterCommand, " :"); found {
		parsed.Arguments = strings.Split(args, " ")
		parsed.Message = message
		parsed.HasMessage = true
	} else if strings.HasPrefix(afterCommand, ":") {
		parsed.Message = afterCommand[1:]
		parsed.HasMessage = true
	} else if afterCommand != "" {
		parsed.Arguments = strings.Split(afterCommand, " ")
	}

	return parsed, nil
}

// cutSpace splits s around the first run of whitespace.
func cutSpace(s string) (before, after string, found bool) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, "", false
	}

	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace), true
}
