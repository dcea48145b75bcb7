package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type notificationRepoPG struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepoPG{pool: pool}
}

func (r *notificationRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const notificationCols = `id, user_id, appointment_id, title, message, type, is_read, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.AppointmentID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepoPG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, appointment_id, title, message, type, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING created_at`,
		n.ID, n.UserID, n.AppointmentID, n.Title, n.Message, n.Type,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notification create: %w", err)
	}
	n.IsRead = false
	return nil
}

func (r *notificationRepoPG) UpsertForAppointment(ctx context.Context, n *Notification) error {
	if n.AppointmentID == nil {
		return fmt.Errorf("notification upsert: appointment id is required")
	}
	if n.Type != TypeAppointment {
		return fmt.Errorf("notification upsert: type %q is not upsertable", n.Type)
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, appointment_id, title, message, type, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		ON CONFLICT (user_id, appointment_id, type) WHERE type = 'APPOINTMENT' DO UPDATE
		SET title = EXCLUDED.title, message = EXCLUDED.message, is_read = FALSE
		RETURNING id, created_at`,
		uuid.New(), n.UserID, n.AppointmentID, n.Title, n.Message, n.Type,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notification upsert: %w", err)
	}
	n.IsRead = false
	return nil
}

func (r *notificationRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("notification count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+notificationCols+` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("notification list: %w", err)
	}
	defer rows.Close()

	items := []*Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func (r *notificationRepoPG) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("notification count unread: %w", err)
	}
	return n, nil
}

func (r *notificationRepoPG) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notification mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepoPG) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("notification mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}
