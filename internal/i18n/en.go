package i18n

// EnMessages 英文文案 / English messages
var EnMessages = map[string]string{
	"input.placeholder": "Type a message, Enter to send...",

	"panel.chat":     "Chat",
	"panel.sessions": "Sessions",

	"sidebar.sessions": "Sessions",
	"sidebar.model":    "Model",
	"sidebar.context":  "Context",

	"status.ready":     "ready",
	"status.streaming": "streaming",

	"chat.no_response": "no response received",
	"chat.attachment":  "attachment: %s",

	"repl.goodbye":         "bye",
	"repl.busy":            "a reply is still streaming, wait for it to finish",
	"repl.unknown_command": "unknown command: %s",
	"repl.switched":        "switched to session %s",
	"repl.renamed":         "session renamed to %q",
	"repl.deleted":         "session deleted",
	"repl.created":         "created session %s",
	"repl.attached":        "attached %s (%s), it will be sent with your next message",
	"repl.model_set":       "model set to %s",
	"repl.no_session":      "no session with that id",
}
