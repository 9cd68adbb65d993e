// Package cards renders Adaptive Cards for order replies.
package cards

import (
	"encoding/json"
	"fmt"
	"time"

	"order-relay/internal/domain"
)

const (
	ContentType = "application/vnd.microsoft.card.adaptive"
	schemaURL   = "http://adaptivecards.io/schemas/adaptive-card.json"
	version     = "1.4"

	timeLayout = "2006/01/02 15:04:05"
	divider    = "──────────────"
)

// Card is the subset of the Adaptive Card schema the relay emits.
type Card struct {
	Type    string `json:"type"`
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Body    []any  `json:"body"`
}

type TextBlock struct {
	Type                string `json:"type"`
	Text                string `json:"text"`
	Weight              string `json:"weight,omitempty"`
	Size                string `json:"size,omitempty"`
	Color               string `json:"color,omitempty"`
	Spacing             string `json:"spacing,omitempty"`
	HorizontalAlignment string `json:"horizontalAlignment,omitempty"`
	IsSubtle            bool   `json:"isSubtle,omitempty"`
	Wrap                bool   `json:"wrap,omitempty"`
}

type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type FactSet struct {
	Type  string `json:"type"`
	Facts []Fact `json:"facts"`
}

type Container struct {
	Type  string `json:"type"`
	Items []any  `json:"items"`
}

// Orders renders one block per order under a title. Timestamps are shown
// in loc; nil means UTC.
func Orders(title string, orders []domain.Order, loc *time.Location) Card {
	if loc == nil {
		loc = time.UTC
	}
	body := make([]any, 0, len(orders)+1)
	body = append(body, TextBlock{
		Type:                "TextBlock",
		Text:                title,
		Weight:              "Bolder",
		Size:                "Large",
		Color:               "Accent",
		HorizontalAlignment: "Center",
		Wrap:                true,
	})
	for i, o := range orders {
		body = append(body, Container{
			Type: "Container",
			Items: []any{
				TextBlock{Type: "TextBlock", Text: fmt.Sprintf("Order #%d", i+1), Weight: "Bolder", Size: "Medium", Color: "Good", Spacing: "Small"},
				FactSet{Type: "FactSet", Facts: []Fact{
					{Title: "Client", Value: o.ClientName},
					{Title: "PO", Value: o.PONumber},
					{Title: "Amount", Value: string(o.Amount)},
					{Title: "Created", Value: FormatTime(o.CreatedAt, loc)},
				}},
				TextBlock{Type: "TextBlock", Text: divider, Color: "Accent", Spacing: "Small", IsSubtle: true},
			},
		})
	}
	return Card{Type: "AdaptiveCard", Schema: schemaURL, Version: version, Body: body}
}

// FormatTime renders an RFC 3339 timestamp in loc. Unparseable values are
// returned unchanged.
func FormatTime(value string, loc *time.Location) string {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return ts.In(loc).Format(timeLayout)
}

// Attachment wraps a card for an outbound activity.
func Attachment(c Card) *domain.Attachment {
	return &domain.Attachment{ContentType: ContentType, Content: c}
}

// Marshal renders a card as indented JSON.
func Marshal(c Card) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
