package domain

import (
	"strings"
	"time"
)

const defaultChannelID = "msteams"

// Record is one participant entry in the directory document. Free-text user
// input is deliberately not part of the type, so it can never be persisted.
type Record struct {
	From         ChannelAccount      `json:"from"`
	Conversation ConversationAccount `json:"conversation"`
	ChannelID    string              `json:"channelId,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	Recipient    ChannelAccount      `json:"recipient"`
	TenantID     string              `json:"tenantId,omitempty"`
	Email        string              `json:"email,omitempty"`
	Summary      string              `json:"summary,omitempty"`
	Time         string              `json:"time,omitempty"`
}

// RecordFromActivity captures the routing fields of an activity.
func RecordFromActivity(a Activity, observed time.Time) Record {
	return Record{
		From:         a.From,
		Conversation: a.Conversation,
		ChannelID:    a.ChannelID,
		ServiceURL:   a.ServiceURL,
		Recipient:    a.Recipient,
		TenantID:     a.Conversation.TenantID,
		Time:         observed.UTC().Format(time.RFC3339Nano),
	}
}

// Key is the identity of the participant: user id and tenant.
func (r Record) Key() string {
	return r.From.ID + "|" + r.Conversation.TenantID
}

// Reference builds a conversation reference from the record. ok is false
// when any of conversation id, service URL, bot id or user id is missing.
func (r Record) Reference() (ConversationReference, bool) {
	if strings.TrimSpace(r.Conversation.ID) == "" ||
		strings.TrimSpace(r.ServiceURL) == "" ||
		strings.TrimSpace(r.Recipient.ID) == "" ||
		strings.TrimSpace(r.From.ID) == "" {
		return ConversationReference{}, false
	}
	channelID := r.ChannelID
	if channelID == "" {
		channelID = defaultChannelID
	}
	conv := r.Conversation
	if conv.TenantID == "" {
		conv.TenantID = r.TenantID
	}
	return ConversationReference{
		ServiceURL:   r.ServiceURL,
		ChannelID:    channelID,
		Conversation: conv,
		Bot:          r.Recipient,
		User:         r.From,
	}, true
}
