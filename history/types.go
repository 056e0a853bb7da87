package history

// MetaIndex contains conversation indexing information
type MetaIndex struct {
	Version          string              `json:"version"`
	LastConversation string              `json:"last_conversation_id,omitempty"`
	OwnerIndex       map[string][]string `json:"owner_index"`
}
