package mock

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/service"
)

type notificationRow struct {
	ID         string        `db:"id"`
	UserID     int64         `db:"user_id"`
	Type       string        `db:"type"`
	Title      string        `db:"title"`
	Message    string        `db:"message"`
	GraveID    sql.NullInt64 `db:"grave_id"`
	GraveTitle string        `db:"grave_title"`
	IsRead     bool          `db:"is_read"`
	CreatedAt  string        `db:"created_at"`
}

func (r notificationRow) toNotification() model.Notification {
	n := model.Notification{
		ID:               model.ID(r.ID),
		Type:             model.NotificationType(r.Type),
		Title:            r.Title,
		Message:          r.Message,
		TimeCapsuleTitle: r.GraveTitle,
		IsRead:           r.IsRead,
		CreatedAt:        parseStamp(r.CreatedAt),
	}
	if r.GraveID.Valid {
		n.TimeCapsuleID = model.ID(itoa(r.GraveID.Int64))
	}
	return n
}

type preferencesRow struct {
	UserID             int64 `db:"user_id"`
	EmailNotifications bool  `db:"email_notifications"`
	PushNotifications  bool  `db:"push_notifications"`
	CapsuleUnlocked    bool  `db:"capsule_unlocked"`
	CapsuleShared      bool  `db:"capsule_shared"`
	CollaboratorAdded  bool  `db:"collaborator_added"`
	Reminders          bool  `db:"reminders"`
	WeeklyDigest       bool  `db:"weekly_digest"`
}

// List returns the user's notifications, newest first.
func (s *Notifications) List(ctx context.Context, filter service.NotificationFilter) ([]model.Notification, error) {
	userID, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.sweepUnlocks(ctx, userID); err != nil {
		return nil, err
	}

	query := "SELECT * FROM notifications WHERE user_id = ?"
	args := []any{userID}
	if filter.UnreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storageErr(err)
	}

	list := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toNotification())
	}
	return list, nil
}

// UnreadCount counts the user's unread notifications.
func (s *Notifications) UnreadCount(ctx context.Context) (int, error) {
	userID, err := s.authorize(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.sweepUnlocks(ctx, userID); err != nil {
		return 0, err
	}

	var n int
	err = s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", userID)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

// MarkRead flags one notification as read. Marking twice is not an error.
func (s *Notifications) MarkRead(ctx context.Context, id string) error {
	userID, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fail(400, "A notification id is required.")
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fail(404, "Notification not found.")
	}
	return nil
}

// MarkAllRead flags every notification of the user as read.
func (s *Notifications) MarkAllRead(ctx context.Context) error {
	userID, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE user_id = ?", userID); err != nil {
		return storageErr(err)
	}
	return nil
}

// Preferences returns the user's toggles, or the defaults if none were saved.
func (s *Notifications) Preferences(ctx context.Context) (*model.NotificationPreferences, error) {
	userID, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// UpdatePreferences replaces the user's toggles.
func (s *Notifications) UpdatePreferences(
	ctx context.Context,
	prefs model.NotificationPreferences,
) (*model.NotificationPreferences, error) {
	userID, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO preferences (
			user_id, email_notifications, push_notifications, capsule_unlocked,
			capsule_shared, collaborator_added, reminders, weekly_digest
		) VALUES (
			:user_id, :email_notifications, :push_notifications, :capsule_unlocked,
			:capsule_shared, :collaborator_added, :reminders, :weekly_digest
		)
		ON CONFLICT(user_id) DO UPDATE SET
			email_notifications = excluded.email_notifications,
			push_notifications  = excluded.push_notifications,
			capsule_unlocked    = excluded.capsule_unlocked,
			capsule_shared      = excluded.capsule_shared,
			collaborator_added  = excluded.collaborator_added,
			reminders           = excluded.reminders,
			weekly_digest       = excluded.weekly_digest`,
		preferencesRow{
			UserID:             userID,
			EmailNotifications: prefs.EmailNotifications,
			PushNotifications:  prefs.PushNotifications,
			CapsuleUnlocked:    prefs.CapsuleUnlocked,
			CapsuleShared:      prefs.CapsuleShared,
			CollaboratorAdded:  prefs.CollaboratorAdded,
			Reminders:          prefs.Reminders,
			WeeklyDigest:       prefs.WeeklyDigest,
		},
	)
	if err != nil {
		return nil, storageErr(err)
	}

	saved := prefs
	return &saved, nil
}

func (b *Backend) preferences(ctx context.Context, userID int64) (model.NotificationPreferences, error) {
	var row preferencesRow
	err := b.db.GetContext(ctx, &row, "SELECT * FROM preferences WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultNotificationPreferences(), nil
	}
	if err != nil {
		return model.NotificationPreferences{}, storageErr(err)
	}
	return model.NotificationPreferences{
		EmailNotifications: row.EmailNotifications,
		PushNotifications:  row.PushNotifications,
		CapsuleUnlocked:    row.CapsuleUnlocked,
		CapsuleShared:      row.CapsuleShared,
		CollaboratorAdded:  row.CollaboratorAdded,
		Reminders:          row.Reminders,
		WeeklyDigest:       row.WeeklyDigest,
	}, nil
}
