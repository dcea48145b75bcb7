package notification

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/websocket"
	"github.com/clinic/clinic/pkg/pagination"
)

// DefaultConcurrency bounds parallel writes during an article fanout.
const DefaultConcurrency = 8

// PatientDirectory lists fanout recipients.
type PatientDirectory interface {
	PatientIDs(ctx context.Context) ([]uuid.UUID, error)
}

type Service struct {
	repo        NotificationRepository
	templates   *TemplateEngine
	patients    PatientDirectory
	publisher   websocket.EventPublisher
	concurrency int
	logger      zerolog.Logger
}

// NewService wires the notification service. publisher may be nil, in which
// case no push events are sent.
func NewService(repo NotificationRepository, patients PatientDirectory, publisher websocket.EventPublisher, concurrency int, logger zerolog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		repo:        repo,
		templates:   NewTemplateEngine(),
		patients:    patients,
		publisher:   publisher,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "notification").Logger(),
	}
}

func slotData(a *scheduling.Appointment) map[string]string {
	data := map[string]string{"date": a.Day(), "time": a.Time}
	if a.PatientName != nil {
		data["patient_name"] = *a.PatientName
	}
	return data
}

// BookingCreated tells the doctor about a new booking. It runs inside the
// booking transaction.
func (s *Service) BookingCreated(ctx context.Context, a *scheduling.Appointment) error {
	n, err := s.templates.Render(TemplateBookingCreated, slotData(a))
	if err != nil {
		return err
	}
	n.UserID = a.DoctorID
	n.AppointmentID = &a.ID
	return s.repo.Create(ctx, n)
}

// BookingResolved writes or overwrites the patient's decision notice. It runs
// inside the resolve transaction.
func (s *Service) BookingResolved(ctx context.Context, a *scheduling.Appointment) error {
	if a.PatientID == nil {
		return fmt.Errorf("notification: appointment %s has no patient", a.ID)
	}
	var tpl string
	switch a.Status {
	case scheduling.StatusAccepted:
		tpl = TemplateBookingAccepted
	case scheduling.StatusRejected:
		tpl = TemplateBookingRejected
	default:
		return fmt.Errorf("notification: cannot announce status %q", a.Status)
	}

	n, err := s.templates.Render(tpl, slotData(a))
	if err != nil {
		return err
	}
	n.UserID = *a.PatientID
	n.AppointmentID = &a.ID
	return s.repo.UpsertForAppointment(ctx, n)
}

// Changed pushes a refetch hint to every connection of the given users.
// Delivery is best effort.
func (s *Service) Changed(ctx context.Context, userIDs ...uuid.UUID) {
	if s.publisher == nil {
		return
	}
	for _, id := range userIDs {
		event := websocket.Event{
			Type:      websocket.EventNotificationChanged,
			Topic:     websocket.UserTopic(id),
			Timestamp: time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("user_id", id.String()).Msg("push notification change")
		}
	}
}

// AnnounceArticle notifies every patient about a new article. Individual
// write failures are logged and do not fail the announcement; retrying a
// partially delivered fanout would duplicate the delivered rows.
func (s *Service) AnnounceArticle(ctx context.Context, articleID uuid.UUID, title string) error {
	_, err := s.FanoutArticle(ctx, articleID, title)
	return err
}

// FanoutArticle writes one "blog" notification per patient with at most
// s.concurrency writes in flight. Writes are independent: one failing does
// not cancel or roll back the others.
func (s *Service) FanoutArticle(ctx context.Context, articleID uuid.UUID, title string) (*FanoutResult, error) {
	tpl, err := s.templates.Render(TemplateArticlePublished, map[string]string{"title": title})
	if err != nil {
		return nil, err
	}
	recipients, err := s.patients.PatientIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fanout recipients: %w", err)
	}

	var delivered, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, userID := range recipients {
		userID := userID
		g.Go(func() error {
			n := *tpl
			n.UserID = userID
			if err := s.repo.Create(ctx, &n); err != nil {
				failed.Add(1)
				s.logger.Error().Err(err).Str("article_id", articleID.String()).
					Str("user_id", userID.String()).Msg("article notification failed")
				return nil
			}
			delivered.Add(1)
			s.Changed(ctx, userID)
			return nil
		})
	}
	_ = g.Wait()

	res := &FanoutResult{
		Recipients: len(recipients),
		Delivered:  int(delivered.Load()),
		Failed:     int(failed.Load()),
	}
	ev := s.logger.Info()
	if res.Failed > 0 {
		ev = s.logger.Warn()
	}
	ev.Str("article_id", articleID.String()).Int("recipients", res.Recipients).
		Int("delivered", res.Delivered).Int("failed", res.Failed).Msg("article fanout finished")
	return res, nil
}

// List returns the caller's notifications newest first together with the
// unread count.
func (s *Service) List(ctx context.Context, caller auth.Identity, p pagination.Params) ([]*Notification, int, int, error) {
	items, total, err := s.repo.ListByUser(ctx, caller.UserID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, caller.UserID)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, total, unread, nil
}

func (s *Service) MarkRead(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id, caller.UserID); err != nil {
		return err
	}
	s.Changed(ctx, caller.UserID)
	return nil
}

// MarkAllRead flags every unread notification of the caller in one update.
func (s *Service) MarkAllRead(ctx context.Context, caller auth.Identity) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, caller.UserID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Changed(ctx, caller.UserID)
	}
	return n, nil
}
