package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Built-in template ids.
const (
	TemplateBookingCreated   = "booking-created"
	TemplateBookingAccepted  = "booking-accepted"
	TemplateBookingRejected  = "booking-rejected"
	TemplateArticlePublished = "article-published"
)

// Template is a title/message pair with {{key}} placeholders.
type Template struct {
	ID      string
	Title   string
	Message string
	Type    string
}

// TemplateEngine renders notification text from registered templates.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:      TemplateBookingCreated,
			Title:   "New appointment booked",
			Message: "Patient {{patient_name}} booked an appointment on {{date}} at {{time}}",
			Type:    TypeBooking,
		},
		{
			ID:      TemplateBookingAccepted,
			Title:   "Your appointment has been confirmed",
			Message: "Your appointment on {{date}} at {{time}} has been confirmed.",
			Type:    TypeAppointment,
		},
		{
			ID:      TemplateBookingRejected,
			Title:   "Your appointment has been rejected",
			Message: "Sorry, your appointment on {{date}} at {{time}} has been rejected. Please choose another time.",
			Type:    TypeAppointment,
		},
		{
			ID:      TemplateArticlePublished,
			Title:   "New article on the blog",
			Message: `A new article titled "{{title}}" was published`,
			Type:    TypeBlog,
		},
	} {
		e.Register(t)
	}
	return e
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render substitutes data into the template's title and message in a single
// pass, so substituted values are never expanded again. Placeholders without
// data are left as-is.
func (e *TemplateEngine) Render(id string, data map[string]string) (*Notification, error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("template %q not found", id)
	}

	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return &Notification{
		Title:   r.Replace(t.Title),
		Message: r.Replace(t.Message),
		Type:    t.Type,
	}, nil
}
