// Package history derives the model-ready context from a character's seed
// turns and the stored transcript.
package history

import (
	"github.com/wilvurson/ai-chat/internal/server/llm"
	"github.com/wilvurson/ai-chat/internal/server/models"
)

// Assemble builds the ordered context sent to the model: the persona as a
// user turn, then the greeting as a model turn, then the stored turns in
// order. The two seed entries are always present, even
// for an empty transcript, so the persona is re-sent on every call rather
// than cached by the provider.
func Assemble(character *models.Character, priorTurns []*models.Turn) []llm.Message {
	context := make([]llm.Message, 0, 2+len(priorTurns))
	context = append(context,
		llm.Message{Role: models.RoleUser, Text: character.BasePrompt},
		llm.Message{Role: models.RoleModel, Text: character.GreetingText},
	)
	for _, t := range priorTurns {
		context = append(context, llm.Message{Role: t.Role, Text: t.Content})
	}
	return context
}
