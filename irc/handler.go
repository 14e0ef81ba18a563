package irc

// ChatMessage is a PRIVMSG sent by a user.
type ChatMessage struct {
	Username string
	Target   string // channel or nickname the message was sent to
	Message  string
}

// Handler receives session events. All calls for one session are made from
// the session's Dispatcher, never concurrently.
type Handler interface {
	// OnCommand is called for every parsed line that is not a chat message.
	OnCommand(line Line)
	OnChatMessage(msg ChatMessage)
	OnError(err error)
	// OnStreamEnd is called once when the server closed the stream.
	OnStreamEnd()
}

// HandlerFuncs implements Handler with optional callbacks.
type HandlerFuncs struct {
	Command     func(Line)
	ChatMessage func(ChatMessage)
	Error       func(error)
	StreamEnd   func()
}

func (h HandlerFuncs) OnCommand(line Line) {
	if h.Command != nil {
		h.Command(line)
	}
}

func (h HandlerFuncs) OnChatMessage(msg ChatMessage) {
	if h.ChatMessage != nil {
		h.ChatMessage(msg)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

func (h HandlerFuncs) OnStreamEnd() {
	if h.StreamEnd != nil {
		h.StreamEnd()
	}
}
