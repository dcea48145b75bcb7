package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var ErrNotificationNotFound = apperr.New(apperr.ErrNotFound, "notification not found")

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	// UpsertForAppointment writes the single APPOINTMENT decision notice for
	// (user, appointment), replacing its text and marking it unread when it exists.
	UpsertForAppointment(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
