package service

import (
	"time"

	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/model"
)

// Tombstone is the backend's wire shape for a time capsule.
type Tombstone struct {
	ID            model.ID                `json:"id"`
	UserID        model.ID                `json:"user_id"`
	Title         string                  `json:"title"`
	Content       *string                 `json:"content,omitempty"`
	UnlockDate    string                  `json:"unlock_date"`
	IsUnlocked    bool                    `json:"is_unlocked"`
	IsPublic      bool                    `json:"is_public,omitempty"`
	CreatedAt     string                  `json:"created_at"`
	UpdatedAt     string                  `json:"updated_at"`
	Files         []TombstoneFile         `json:"files,omitempty"`
	Collaborators []TombstoneCollaborator `json:"collaborators,omitempty"`
	ShareURL      string                  `json:"share_url,omitempty"`
	ShareID       string                  `json:"share_id,omitempty"`
	AudioURL      string                  `json:"audio_url,omitempty"`
}

// TombstoneFile is an attachment as sent by the backend. Files are only
// present on unlocked tombstones.
type TombstoneFile struct {
	ID        model.ID `json:"id"`
	FileName  string   `json:"file_name"`
	URL       string   `json:"url"`
	Size      int64    `json:"size"`
	MimeType  string   `json:"mime_type,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// TombstoneCollaborator is a collaborator as sent by the backend.
type TombstoneCollaborator struct {
	ID       model.ID `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	JoinedAt string   `json:"joined_at"`
	Avatar   string   `json:"avatar,omitempty"`
}

// ToTimeCapsule maps the wire shape to the domain model. Status comes from
// is_unlocked alone, and the message and files are dropped while locked.
func (t Tombstone) ToTimeCapsule() model.TimeCapsule {
	capsule := model.TimeCapsule{
		ID:            t.ID.String(),
		Title:         t.Title,
		OpenDate:      parseTime(t.UnlockDate),
		CreatedAt:     parseTime(t.CreatedAt),
		UpdatedAt:     parseTime(t.UpdatedAt),
		CreatedBy:     t.UserID.String(),
		Status:        model.StatusFromUnlocked(t.IsUnlocked),
		Contents:      []model.TimeCapsuleContent{},
		Collaborators: make([]model.Collaborator, 0, len(t.Collaborators)),
		IsPublic:      t.IsPublic,
		ShareURL:      t.ShareURL,
		ShareID:       t.ShareID,
		AudioURL:      t.AudioURL,
	}

	if t.IsUnlocked {
		if t.Content != nil {
			capsule.Description = *t.Content
		}
		for _, f := range t.Files {
			capsule.Contents = append(capsule.Contents, model.TimeCapsuleContent{
				ID:        f.ID.String(),
				Type:      model.ContentTypeFromMIME(f.MimeType),
				Name:      f.FileName,
				URL:       f.URL,
				Size:      f.Size,
				MimeType:  f.MimeType,
				CreatedAt: parseTime(f.CreatedAt),
			})
		}
	}

	for _, c := range t.Collaborators {
		capsule.Collaborators = append(capsule.Collaborators, model.Collaborator{
			ID:       c.ID.String(),
			Name:     c.Name,
			Email:    c.Email,
			Role:     model.CollaboratorRole(c.Role),
			JoinedAt: parseTime(c.JoinedAt),
			Avatar:   c.Avatar,
		})
	}

	return capsule
}

func parseTime(s string) time.Time {
	if t := convert.ParseISODate(s); t != nil {
		return *t
	}
	return time.Time{}
}
