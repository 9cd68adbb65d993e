package cards

import "fmt"

// Menu renders a numbered option list. Users answer by typing the number.
func Menu(title string, options []string) Card {
	body := []any{
		TextBlock{Type: "TextBlock", Text: title, Weight: "Bolder", Size: "Medium", Wrap: true},
	}
	for i, opt := range options {
		body = append(body, TextBlock{Type: "TextBlock", Text: fmt.Sprintf("%d. %s", i+1, opt), Wrap: true})
	}
	body = append(body, TextBlock{Type: "TextBlock", Text: "Reply with the option number.", IsSubtle: true, Spacing: "Medium", Wrap: true})
	return Card{Type: "AdaptiveCard", Schema: schemaURL, Version: version, Body: body}
}
