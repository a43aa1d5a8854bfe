package bus

// InboundEvent represents a chat event received from a transport and already
// persisted upstream. It is the trigger for a debounced response generation.
type InboundEvent struct {
	ConversationID string            `json:"conversation_id"`
	SenderID       string            `json:"sender_id,omitempty"`
	IsGroup        bool              `json:"is_group"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a message handed to the transport for delivery.
// Delivery is fire-and-forget from the engine's perspective.
type OutboundMessage struct {
	ConversationID string            `json:"conversation_id"`
	IsGroup        bool              `json:"is_group"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}
