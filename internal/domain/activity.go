package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Activity types sent by the channel.
const (
	ActivityTypeMessage            = "message"
	ActivityTypeConversationUpdate = "conversationUpdate"
	ActivityTypeEmail              = "email"
)

// ActivityKind is the validated shape of an inbound activity.
type ActivityKind int

const (
	KindUnknown ActivityKind = iota
	// KindMessage is a chat message typed by a participant.
	KindMessage
	// KindSystem is a conversation lifecycle event (members added, etc).
	KindSystem
	// KindWebPost is a message injected by the order website, not typed in chat.
	KindWebPost
	// KindEmail is an email-originated activity.
	KindEmail
)

func (k ActivityKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindSystem:
		return "system"
	case KindWebPost:
		return "webpost"
	case KindEmail:
		return "email"
	default:
		return "unknown"
	}
}

// ChannelAccount identifies a user or bot on the channel.
type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
	Role        string `json:"role,omitempty"`
}

// ConversationAccount identifies a conversation on the channel.
type ConversationAccount struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenantId,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
}

// ChannelData carries channel-specific markers. Only the fields the relay
// routes on are modelled.
type ChannelData struct {
	WebPost bool            `json:"webPost,omitempty"`
	Email   json.RawMessage `json:"email,omitempty"`
}

// Activity is a normalized inbound event from the chat platform.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	Text         string              `json:"text,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Conversation ConversationAccount `json:"conversation"`
	ChannelID    string              `json:"channelId,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelData  ChannelData         `json:"channelData,omitempty"`
	MembersAdded []ChannelAccount    `json:"membersAdded,omitempty"`
}

// ErrInvalidActivity is returned for payloads that fail boundary validation.
var ErrInvalidActivity = errors.New("domain: invalid activity")

// ParseActivity decodes and validates an inbound activity payload.
func ParseActivity(raw []byte) (Activity, error) {
	var a Activity
	if err := json.Unmarshal(raw, &a); err != nil {
		return Activity{}, fmt.Errorf("%w: %v", ErrInvalidActivity, err)
	}
	if err := a.Validate(); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// Validate checks the fields required by the activity's kind.
func (a Activity) Validate() error {
	if strings.TrimSpace(a.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidActivity)
	}
	if strings.TrimSpace(a.Conversation.ID) == "" {
		return fmt.Errorf("%w: conversation.id is required", ErrInvalidActivity)
	}
	switch a.Kind() {
	case KindMessage, KindWebPost, KindEmail:
		if strings.TrimSpace(a.From.ID) == "" {
			return fmt.Errorf("%w: from.id is required", ErrInvalidActivity)
		}
	}
	return nil
}

// Kind classifies the activity. Web posts and email markers take precedence
// over the plain message type.
func (a Activity) Kind() ActivityKind {
	switch a.Type {
	case ActivityTypeMessage:
		if a.ChannelData.WebPost {
			return KindWebPost
		}
		if len(a.ChannelData.Email) > 0 && string(a.ChannelData.Email) != "null" {
			return KindEmail
		}
		return KindMessage
	case ActivityTypeEmail:
		return KindEmail
	case ActivityTypeConversationUpdate:
		return KindSystem
	default:
		return KindUnknown
	}
}

// Reference returns the routing fields needed to reply to this activity.
func (a Activity) Reference() ConversationReference {
	return ConversationReference{
		ServiceURL:   a.ServiceURL,
		ChannelID:    a.ChannelID,
		Conversation: a.Conversation,
		Bot:          a.Recipient,
		User:         a.From,
		ActivityID:   a.ID,
	}
}

// ConversationReference addresses an outbound message without a prior
// inbound trigger.
type ConversationReference struct {
	ServiceURL   string              `json:"serviceUrl"`
	ChannelID    string              `json:"channelId"`
	Conversation ConversationAccount `json:"conversation"`
	Bot          ChannelAccount      `json:"bot"`
	User         ChannelAccount      `json:"user"`
	ActivityID   string              `json:"activityId,omitempty"`
}
