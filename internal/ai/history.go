// Package ai turns a user message and its conversation history into a
// persona-consistent reply from a chat completion provider.
package ai

// MaxHistory is the number of prior turns forwarded to the provider.
const MaxHistory = 20

// Roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one entry of conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SanitizeHistory normalizes untrusted, client-supplied history into at
// most MaxHistory well-formed turns. It never fails: input that is not a
// list yields an empty history, and malformed entries are coerced.
func SanitizeHistory(raw any) []Turn {
	list, ok := raw.([]any)
	if !ok {
		return []Turn{}
	}

	if len(list) > MaxHistory {
		list = list[len(list)-MaxHistory:]
	}

	turns := make([]Turn, 0, len(list))
	for _, item := range list {
		turn := Turn{Role: RoleUser}
		if entry, ok := item.(map[string]any); ok {
			if role, _ := entry["role"].(string); role == RoleAssistant {
				turn.Role = RoleAssistant
			}
			turn.Content, _ = entry["content"].(string)
		}
		turns = append(turns, turn)
	}
	return turns
}
