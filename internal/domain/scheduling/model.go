package scheduling

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. AVAILABLE -> PENDING -> ACCEPTED | REJECTED.
const (
	StatusAvailable = "AVAILABLE"
	StatusPending   = "PENDING"
	StatusAccepted  = "ACCEPTED"
	StatusRejected  = "REJECTED"
)

// DateLayout is the calendar-day format used on the wire and in messages.
const DateLayout = "2006-01-02"

// Appointment is a doctor-owned slot. PatientID is set exactly when Status
// is not AVAILABLE.
type Appointment struct {
	ID           uuid.UUID  `json:"id"`
	DoctorID     uuid.UUID  `json:"doctorId"`
	DoctorName   string     `json:"doctorName,omitempty"`
	Date         time.Time  `json:"date"`
	Time         string     `json:"time"`
	Status       string     `json:"status"`
	PatientID    *uuid.UUID `json:"patientId"`
	PatientName  *string    `json:"patientName"`
	PatientPhone *string    `json:"patientPhone"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Day returns the slot's calendar day as YYYY-MM-DD.
func (a *Appointment) Day() string {
	return a.Date.UTC().Format(DateLayout)
}

func (a *Appointment) Booked() bool {
	return a.PatientID != nil
}

type CreateSlotRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

type BookRequest struct {
	AppointmentID string `json:"appointmentId" validate:"required,uuid"`
	FullName      string `json:"fullName" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"required,max=32"`
}

type ResolveRequest struct {
	AppointmentID string `json:"appointmentId" validate:"required,uuid"`
	Status        string `json:"status" validate:"required,oneof=ACCEPTED REJECTED"`
}

// SlotListing is the result of browsing bookable slots. Message explains an
// empty result.
type SlotListing struct {
	DoctorID     *uuid.UUID     `json:"doctorId,omitempty"`
	Appointments []*Appointment `json:"appointments"`
	Message      string         `json:"message,omitempty"`
}

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// NormalizeTime validates a 24-hour HH:MM token. A single-digit hour is
// zero-padded.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 && s[1] == ':' {
		s = "0" + s
	}
	if !timePattern.MatchString(s) {
		return "", fmt.Errorf("time must be HH:MM (24-hour)")
	}
	return s, nil
}

// NormalizeDate parses a calendar day and returns it at UTC midnight. Both
// YYYY-MM-DD and RFC 3339 timestamps are accepted; for timestamps the day
// is taken as written, in the timestamp's own offset.
func NormalizeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
