package domain

// Step is the position of a conversation in the /check dialog.
type Step string

const (
	StepNone                  Step = "None"
	StepAwaitOption           Step = "AwaitOption"
	StepAwaitDateRange        Step = "AwaitDateRange"
	StepAwaitLatestOrderCount Step = "AwaitLatestOrderCount"
	// StepAwaitCount is the legacy "count" flow handled by an external collaborator.
	StepAwaitCount Step = "AwaitCount"
)

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	switch s {
	case StepNone, StepAwaitOption, StepAwaitDateRange, StepAwaitLatestOrderCount, StepAwaitCount:
		return true
	}
	return false
}

// ConversationSession is the mutable per-conversation dialog state.
type ConversationSession struct {
	ConversationID string `json:"conversationId"`
	MessageCount   int    `json:"messageCount"`
	StaffIdentity  string `json:"staffIdentity,omitempty"`
	Step           Step   `json:"step"`
	UpdatedAt      string `json:"updatedAt,omitempty"`

	// ETag is the store version this snapshot was read at. Empty for a
	// session that has never been persisted.
	ETag string `json:"-"`
}

// NewSession returns a fresh session for conversationID.
func NewSession(conversationID string) ConversationSession {
	return ConversationSession{ConversationID: conversationID, Step: StepNone}
}

// Normalize resets unknown steps to StepNone and clamps the counter.
func (s *ConversationSession) Normalize() {
	if !s.Step.Valid() {
		s.Step = StepNone
	}
	if s.MessageCount < 0 {
		s.MessageCount = 0
	}
}
