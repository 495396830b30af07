package domain

import (
	"strings"
	"time"
)

// MessageTemplate maps a logical message type to subject/body content.
// Placeholders use the {name} form and render from caller params.
type MessageTemplate struct {
	Type      string
	Subject   string
	Body      string
	UpdatedAt time.Time
}

// Render substitutes {name} placeholders in subject and body. Unknown
// placeholders are left as-is so a missing param is visible downstream.
func (t *MessageTemplate) Render(params map[string]string) (string, string) {
	if t == nil {
		return "", ""
	}
	if len(params) == 0 {
		return t.Subject, t.Body
	}

	pairs := make([]string, 0, len(params)*2)
	for key, value := range params {
		pairs = append(pairs, "{"+key+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)

	return replacer.Replace(t.Subject), replacer.Replace(t.Body)
}
