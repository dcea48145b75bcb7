package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoMatch is returned by conditional updates whose WHERE clause matched
// no row. The service decides what that means.
var ErrNoMatch = errors.New("no matching appointment")

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// ListByDoctor returns every slot of the doctor ordered by date then time.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error)
	// ListAvailable returns AVAILABLE slots, optionally for one doctor.
	ListAvailable(ctx context.Context, doctorID *uuid.UUID) ([]*Appointment, error)
	// FirstDoctorWithAvailable returns the doctor owning the earliest
	// AVAILABLE slot.
	FirstDoctorWithAvailable(ctx context.Context) (uuid.UUID, bool, error)

	Delete(ctx context.Context, id, doctorID uuid.UUID) (int64, error)
	DeleteAllByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error)

	// Book moves an AVAILABLE slot to PENDING for the patient in one
	// statement. Returns ErrNoMatch when the slot is absent or not AVAILABLE.
	Book(ctx context.Context, id, patientID uuid.UUID, name, phone string) (*Appointment, error)
	// Resolve sets the status of a booked slot owned by doctorID. Returns
	// ErrNoMatch when no such slot exists.
	Resolve(ctx context.Context, id, doctorID uuid.UUID, status string) (*Appointment, error)
}
