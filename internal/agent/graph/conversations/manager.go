package conversations

import (
	"github.com/cloudwego/eino/schema"
)

// MessagesManager assembles the message list sent to the oracle: the session
// history, optionally cut to a window, followed by the rendered instruction.
type MessagesManager struct {
	maxTurns int
}

func NewMessagesManager(maxTurns int) *MessagesManager {
	return &MessagesManager{maxTurns: maxTurns}
}

// BuildMessages returns the history plus the instruction as the final user message.
// The history slice is never modified.
func (cm *MessagesManager) BuildMessages(history []*schema.Message, instruction string) []*schema.Message {
	recent := trimTail(history, cm.maxTurns)

	messages := make([]*schema.Message, 0, len(recent)+1)
	for _, msg := range recent {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User, schema.Assistant:
			messages = append(messages, &schema.Message{Role: msg.Role, Content: msg.Content})
		}
	}
	return append(messages, schema.UserMessage(instruction))
}

// trimTail keeps the last maxTurns messages; maxTurns <= 0 keeps everything.
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
