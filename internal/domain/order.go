package domain

import (
	"bytes"
	"encoding/json"
)

// Order is one row returned by the backend order service.
type Order struct {
	ClientName string `json:"clientName"`
	PONumber   string `json:"poNumber"`
	Amount     Amount `json:"amount"`
	CreatedAt  string `json:"createdAt"`
}

// OrderQuery filters an order listing. Empty dates mean no bound.
type OrderQuery struct {
	StaffEmail string `json:"staffEmail"`
	StartDate  string `json:"startDate,omitempty"`
	EndDate    string `json:"endDate,omitempty"`
}

// Amount keeps the backend's amount verbatim. The backend sends either a
// JSON number or a string.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// Reply is one outbound message: text, an attachment, or both. WebPost
// marks notifications that originate outside the chat.
type Reply struct {
	Text       string
	Attachment *Attachment
	WebPost    bool
}

// Attachment is a rich card payload.
type Attachment struct {
	ContentType string `json:"contentType"`
	Content     any    `json:"content"`
}

// TextReply is shorthand for a text-only reply.
func TextReply(text string) Reply {
	return Reply{Text: text}
}
