package scheduling

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validate"
)

var (
	ErrAppointmentNotFound = apperr.New(apperr.ErrNotFound, "appointment not found")
	ErrSlotTaken           = apperr.New(apperr.ErrConflict, "appointment is no longer available")
	ErrNotBooked           = apperr.New(apperr.ErrConflict, "appointment has not been booked")
	ErrNotOwner            = apperr.Forbidden("appointment belongs to another doctor")
	ErrDoctorOnly          = apperr.Forbidden("only doctors can manage appointment slots")
	ErrPatientOnly         = apperr.Forbidden("only patients can book appointments")
)

// NoAvailableMessage accompanies an empty browse result.
const NoAvailableMessage = "no appointments are available right now"

// Notifier receives booking side effects. BookingCreated and BookingResolved
// run inside the booking transaction; Changed runs after commit.
type Notifier interface {
	BookingCreated(ctx context.Context, a *Appointment) error
	BookingResolved(ctx context.Context, a *Appointment) error
	Changed(ctx context.Context, userIDs ...uuid.UUID)
}

// TxRunner runs fn in a single database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     AppointmentRepository
	tx       TxRunner
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo AppointmentRepository, tx TxRunner, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, notifier: notifier, logger: logger}
}

// CreateSlot adds an AVAILABLE slot owned by the calling doctor. Duplicate
// date/time pairs are allowed.
func (s *Service) CreateSlot(ctx context.Context, caller auth.Identity, req CreateSlotRequest) (*Appointment, error) {
	if caller.Role != auth.RoleDoctor {
		return nil, ErrDoctorOnly
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	date, err := NormalizeDate(req.Date)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	slotTime, err := NormalizeTime(req.Time)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	a := &Appointment{
		DoctorID: caller.UserID,
		Date:     date,
		Time:     slotTime,
		Status:   StatusAvailable,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).
		Str("date", a.Day()).Str("time", a.Time).Msg("slot created")
	return a, nil
}

// ListSlots returns the role-scoped appointment list: a doctor sees all of
// their own slots, everyone else sees every AVAILABLE slot.
func (s *Service) ListSlots(ctx context.Context, caller auth.Identity) ([]*Appointment, error) {
	if caller.Role == auth.RoleDoctor {
		return s.repo.ListByDoctor(ctx, caller.UserID)
	}
	return s.repo.ListAvailable(ctx, nil)
}

// BrowseSlots returns bookable slots for one doctor. Without doctorID the
// doctor owning the earliest AVAILABLE slot is chosen. Doctors get their own
// slots regardless of status.
func (s *Service) BrowseSlots(ctx context.Context, caller auth.Identity, doctorID *uuid.UUID) (*SlotListing, error) {
	if caller.Role == auth.RoleDoctor {
		items, err := s.repo.ListByDoctor(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		return &SlotListing{DoctorID: &caller.UserID, Appointments: items}, nil
	}

	if doctorID == nil {
		id, ok, err := s.repo.FirstDoctorWithAvailable(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &SlotListing{Appointments: []*Appointment{}, Message: NoAvailableMessage}, nil
		}
		doctorID = &id
	}

	items, err := s.repo.ListAvailable(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	listing := &SlotListing{DoctorID: doctorID, Appointments: items}
	if len(items) == 0 {
		listing.Message = NoAvailableMessage
	}
	return listing, nil
}

// DeleteSlot removes one of the caller's slots regardless of its status.
// A slot owned by someone else is reported as not found.
func (s *Service) DeleteSlot(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	if caller.Role != auth.RoleDoctor {
		return ErrDoctorOnly
	}
	n, err := s.repo.Delete(ctx, id, caller.UserID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// DeleteAllSlots removes every slot of the calling doctor.
func (s *Service) DeleteAllSlots(ctx context.Context, caller auth.Identity) (int64, error) {
	if caller.Role != auth.RoleDoctor {
		return 0, ErrDoctorOnly
	}
	return s.repo.DeleteAllByDoctor(ctx, caller.UserID)
}

// Book claims an AVAILABLE slot for the calling patient and notifies the
// doctor in the same transaction. Concurrent bookings of one slot cannot
// both succeed: the loser gets ErrSlotTaken.
func (s *Service) Book(ctx context.Context, caller auth.Identity, req BookRequest) (*Appointment, error) {
	if caller.Role != auth.RolePatient {
		return nil, ErrPatientOnly
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	id := uuid.MustParse(req.AppointmentID)

	var booked *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.Book(ctx, id, caller.UserID, req.FullName, req.Phone)
		if errors.Is(err, ErrNoMatch) {
			exists, xerr := s.repo.Exists(ctx, id)
			if xerr != nil {
				return xerr
			}
			if !exists {
				return ErrAppointmentNotFound
			}
			return ErrSlotTaken
		}
		if err != nil {
			return err
		}
		if err := s.notifier.BookingCreated(ctx, a); err != nil {
			return err
		}
		booked = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", booked.ID.String()).Str("patient_id", caller.UserID.String()).
		Msg("appointment booked")
	s.notifier.Changed(ctx, booked.DoctorID)
	return booked, nil
}

// Resolve accepts or rejects a booked slot owned by the calling doctor and
// upserts the patient's notice in the same transaction. Resolving again
// overwrites the previous decision.
func (s *Service) Resolve(ctx context.Context, caller auth.Identity, req ResolveRequest) (*Appointment, error) {
	if caller.Role != auth.RoleDoctor {
		return nil, ErrDoctorOnly
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	id := uuid.MustParse(req.AppointmentID)

	var resolved *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.Resolve(ctx, id, caller.UserID, req.Status)
		if errors.Is(err, ErrNoMatch) {
			return s.explainUnresolvable(ctx, id, caller.UserID)
		}
		if err != nil {
			return err
		}
		if err := s.notifier.BookingResolved(ctx, a); err != nil {
			return err
		}
		resolved = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", resolved.ID.String()).Str("status", resolved.Status).
		Msg("appointment resolved")
	s.notifier.Changed(ctx, *resolved.PatientID)
	return resolved, nil
}

func (s *Service) explainUnresolvable(ctx context.Context, id, doctorID uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.DoctorID != doctorID {
		return ErrNotOwner
	}
	return ErrNotBooked
}
