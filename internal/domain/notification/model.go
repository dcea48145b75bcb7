package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification types. The resolution notice keeps its upper-case type for
// compatibility with existing clients.
const (
	TypeBooking     = "booking"
	TypeAppointment = "APPOINTMENT"
	TypeBlog        = "blog"
)

type Notification struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Type          string     `json:"type"`
	IsRead        bool       `json:"isRead"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// FanoutResult summarizes one broadcast to many recipients.
type FanoutResult struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}
