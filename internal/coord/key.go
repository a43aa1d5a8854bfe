// Package coord implements the generation lock protocol: the decision of
// which response attempt is allowed to act for a conversation at any moment.
//
// Coordination keys follow the canonical format:
//
//	DM:    dm:{conversationId}
//	Group: group:{conversationId}:sender:{senderId}
//
// DMs coordinate at conversation granularity — a newer message from the same
// person supersedes the reply being drafted. Group conversations coordinate
// per (conversation, sender) so replies to different participants proceed
// independently and never starve each other.
package coord

import (
	"fmt"
	"strings"
)

// Key is the coordination granularity for generation locks.
type Key string

// DMKey builds the key for a direct conversation.
func DMKey(conversationID string) Key {
	return Key("dm:" + conversationID)
}

// GroupKey builds the key for one sender within a group conversation.
func GroupKey(conversationID, senderID string) Key {
	return Key(fmt.Sprintf("group:%s:sender:%s", conversationID, senderID))
}

// KeyFor builds the coordination key for an inbound trigger.
func KeyFor(conversationID, senderID string, isGroup bool) Key {
	if isGroup {
		return GroupKey(conversationID, senderID)
	}
	return DMKey(conversationID)
}

// ConversationID extracts the conversation part of a key.
// Returns "" if the key is not in a recognized format.
func (k Key) ConversationID() string {
	s := string(k)
	switch {
	case strings.HasPrefix(s, "dm:"):
		return strings.TrimPrefix(s, "dm:")
	case strings.HasPrefix(s, "group:"):
		rest := strings.TrimPrefix(s, "group:")
		if i := strings.Index(rest, ":sender:"); i >= 0 {
			return rest[:i]
		}
	}
	return ""
}

// IsGroup reports whether the key belongs to a group conversation.
func (k Key) IsGroup() bool {
	return strings.HasPrefix(string(k), "group:")
}
