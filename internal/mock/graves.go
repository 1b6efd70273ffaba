package mock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/service"
)

// fileURLFormat addresses a stored attachment for Download.
const fileURLFormat = "mock://graves/%d/files/%d"

type graveRow struct {
	ID             int64  `db:"id"`
	UserID         int64  `db:"user_id"`
	Title          string `db:"title"`
	Content        string `db:"content"`
	UnlockDate     string `db:"unlock_date"`
	IsPublic       bool   `db:"is_public"`
	ShareID        string `db:"share_id"`
	UnlockNotified bool   `db:"unlock_notified"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

type fileRow struct {
	ID        int64  `db:"id"`
	GraveID   int64  `db:"grave_id"`
	FileName  string `db:"file_name"`
	MimeType  string `db:"mime_type"`
	Size      int64  `db:"size"`
	CreatedAt string `db:"created_at"`
}

// unlocked reports whether the grave has opened as of now. Open dates are
// calendar days in UTC.
func (g graveRow) unlocked(now time.Time) bool {
	open, err := time.Parse(convert.DateLayout, g.UnlockDate)
	if err != nil {
		return false
	}
	return !now.UTC().Before(open)
}

// tombstone renders the row the way the backend serializes it, so the mock
// shares the HTTP services' mapping.
func (g graveRow) tombstone(unlocked bool, files []fileRow) service.Tombstone {
	t := service.Tombstone{
		ID:         model.ID(itoa(g.ID)),
		UserID:     model.ID(itoa(g.UserID)),
		Title:      g.Title,
		UnlockDate: g.UnlockDate,
		IsUnlocked: unlocked,
		IsPublic:   g.IsPublic,
		CreatedAt:  convert.FormatDateTimeToISO(parseStamp(g.CreatedAt)),
		UpdatedAt:  convert.FormatDateTimeToISO(parseStamp(g.UpdatedAt)),
		ShareID:    g.ShareID,
	}
	if !unlocked {
		return t
	}

	content := g.Content
	t.Content = &content
	for _, f := range files {
		t.Files = append(t.Files, service.TombstoneFile{
			ID:        model.ID(itoa(f.ID)),
			FileName:  f.FileName,
			URL:       fmt.Sprintf(fileURLFormat, g.ID, f.ID),
			Size:      f.Size,
			MimeType:  f.MimeType,
			CreatedAt: convert.FormatDateTimeToISO(parseStamp(f.CreatedAt)),
		})
	}
	return t
}

// Create seals a capsule with its attachments in one transaction.
func (s *Graves) Create(ctx context.Context, in service.CreateCapsuleInput) (*model.TimeCapsule, error) {
	userID, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fail(400, "A title is required.")
	}
	if in.OpenDate.IsZero() {
		return nil, fail(400, "An unlock date is required.")
	}

	now := s.stamp()
	row := graveRow{
		UserID:     userID,
		Title:      title,
		Content:    in.Message,
		UnlockDate: convert.FormatDateToISO(in.OpenDate),
		ShareID:    uuid.New().String(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO graves (user_id, title, content, unlock_date, share_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.UserID, row.Title, row.Content, row.UnlockDate, row.ShareID, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	row.ID, _ = res.LastInsertId()

	for _, a := range in.Attachments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO grave_files (grave_id, file_name, mime_type, size, data, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			row.ID, a.Name, a.MimeType, len(a.Data), a.Data, now,
		)
		if err != nil {
			return nil, storageErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr(err)
	}

	s.logger.Debug("mock grave created",
		zap.Int64("grave_id", row.ID),
		zap.Int("attachments", len(in.Attachments)))

	// A capsule sealed for today or earlier opens immediately.
	capsule, err := s.present(ctx, row)
	if err != nil {
		return nil, err
	}
	return &capsule, nil
}

// List returns the user's capsules, newest first.
func (s *Graves) List(ctx context.Context) ([]model.TimeCapsule, error) {
	userID, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}

	var rows []graveRow
	err = s.db.SelectContext(ctx, &rows,
		"SELECT * FROM graves WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, storageErr(err)
	}

	capsules := make([]model.TimeCapsule, 0, len(rows))
	for _, row := range rows {
		c, err := s.present(ctx, row)
		if err != nil {
			return nil, err
		}
		capsules = append(capsules, c)
	}
	return capsules, nil
}

// Get returns one of the user's capsules. Other users' capsules are
// reported as missing.
func (s *Graves) Get(ctx context.Context, id string) (*model.TimeCapsule, error) {
	userID, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}

	row, err := s.grave(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	capsule, err := s.present(ctx, *row)
	if err != nil {
		return nil, err
	}
	return &capsule, nil
}

// Download writes a stored attachment to w. Locked capsules refuse.
func (s *Graves) Download(ctx context.Context, content model.TimeCapsuleContent, w io.Writer) (int64, error) {
	userID, err := s.authorize(ctx)
	if err != nil {
		return 0, err
	}

	var graveID, fileID int64
	if _, err := fmt.Sscanf(content.URL, fileURLFormat, &graveID, &fileID); err != nil {
		return 0, fail(404, "Attachment not found.")
	}

	row, err := s.grave(ctx, userID, itoa(graveID))
	if err != nil {
		return 0, err
	}
	if !row.unlocked(s.now()) {
		return 0, fail(403, "This capsule is still sealed.")
	}

	var data []byte
	err = s.db.GetContext(ctx, &data,
		"SELECT data FROM grave_files WHERE id = ? AND grave_id = ?", fileID, graveID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fail(404, "Attachment not found.")
	}
	if err != nil {
		return 0, storageErr(err)
	}

	n, err := w.Write(data)
	return int64(n), err
}

func (b *Backend) grave(ctx context.Context, userID int64, id string) (*graveRow, error) {
	graveID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return nil, fail(404, "Tombstone not found.")
	}

	var row graveRow
	err = b.db.GetContext(ctx, &row, "SELECT * FROM graves WHERE id = ? AND user_id = ?", graveID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fail(404, "Tombstone not found.")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &row, nil
}

// present maps a row to the domain model. The first time a grave is seen
// unlocked, its owner gets a capsule_unlocked notification.
func (b *Backend) present(ctx context.Context, row graveRow) (model.TimeCapsule, error) {
	unlocked := row.unlocked(b.now())

	var files []fileRow
	if unlocked {
		err := b.db.SelectContext(ctx, &files, `
			SELECT id, grave_id, file_name, mime_type, size, created_at
			FROM grave_files WHERE grave_id = ? ORDER BY id`, row.ID)
		if err != nil {
			return model.TimeCapsule{}, storageErr(err)
		}

		if !row.UnlockNotified {
			if err := b.notifyUnlocked(ctx, row); err != nil {
				return model.TimeCapsule{}, err
			}
		}
	}

	return row.tombstone(unlocked, files).ToTimeCapsule(), nil
}

func (b *Backend) notifyUnlocked(ctx context.Context, row graveRow) error {
	prefs, err := b.preferences(ctx, row.UserID)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE graves SET unlock_notified = 1 WHERE id = ? AND unlock_notified = 0", row.ID)
	if err != nil {
		return storageErr(err)
	}
	// Someone else already claimed it.
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if prefs.CapsuleUnlocked {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, type, title, message, grave_id, grave_title, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), row.UserID, string(model.NotificationCapsuleUnlocked),
			"Capsule unlocked",
			fmt.Sprintf("%q is ready to open.", row.Title),
			row.ID, row.Title, b.stamp(),
		)
		if err != nil {
			return storageErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

// sweepUnlocks notifies about every grave of userID that has opened but
// has not been announced yet.
func (b *Backend) sweepUnlocks(ctx context.Context, userID int64) error {
	var rows []graveRow
	err := b.db.SelectContext(ctx, &rows,
		"SELECT * FROM graves WHERE user_id = ? AND unlock_notified = 0 AND unlock_date <= ?",
		userID, convert.FormatDateToISO(b.now().UTC()))
	if err != nil {
		return storageErr(err)
	}
	for _, row := range rows {
		if err := b.notifyUnlocked(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
