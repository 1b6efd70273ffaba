package model

import (
	"strings"
	"time"
)

// CapsuleStatus is the lock state of a time capsule as reported by the backend.
type CapsuleStatus string

const (
	CapsuleLocked   CapsuleStatus = "locked"
	CapsuleUnlocked CapsuleStatus = "unlocked"
	CapsuleExpired  CapsuleStatus = "expired"
)

// StatusFromUnlocked derives the capsule status from the backend's
// is_unlocked flag. The flag is authoritative; the local clock is not.
func StatusFromUnlocked(unlocked bool) CapsuleStatus {
	if unlocked {
		return CapsuleUnlocked
	}
	return CapsuleLocked
}

// ContentType classifies a capsule attachment.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
	ContentFile  ContentType = "file"
)

// ContentTypeFromMIME maps a MIME type to the attachment kind shown to users.
func ContentTypeFromMIME(mime string) ContentType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return ContentImage
	case strings.HasPrefix(mime, "video/"):
		return ContentVideo
	case strings.HasPrefix(mime, "text/"):
		return ContentText
	default:
		return ContentFile
	}
}

// CollaboratorRole is the permission level of a capsule collaborator.
type CollaboratorRole string

const (
	RoleOwner  CollaboratorRole = "owner"
	RoleEditor CollaboratorRole = "editor"
	RoleViewer CollaboratorRole = "viewer"
)

// TimeCapsule is a sealed message that opens on OpenDate. The backend calls
// it a tombstone; the endpoints call it a grave.
type TimeCapsule struct {
	// ID is the backend identifier rendered as a string.
	ID string `json:"id"`

	// Title is the name shown on the tombstone.
	Title string `json:"title"`

	// Description is the sealed message. Empty while the capsule is locked.
	Description string `json:"description"`

	// OpenDate is the calendar day on which the capsule unlocks.
	OpenDate time.Time `json:"openDate"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// CreatedBy is the owning user's id.
	CreatedBy string `json:"createdBy"`

	// Status mirrors the backend unlock flag at the time of the last fetch.
	Status CapsuleStatus `json:"status"`

	// Contents holds the attachments. Only populated once unlocked.
	Contents []TimeCapsuleContent `json:"contents"`

	Collaborators []Collaborator `json:"collaborators"`

	IsPublic bool `json:"isPublic"`

	ShareURL string `json:"shareUrl,omitempty"`
	ShareID  string `json:"shareId,omitempty"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// IsLocked reports whether the capsule contents are still sealed.
func (c TimeCapsule) IsLocked() bool {
	return c.Status != CapsuleUnlocked
}

// TimeCapsuleContent is a single attachment inside a capsule.
type TimeCapsuleContent struct {
	ID        string      `json:"id"`
	Type      ContentType `json:"type"`
	Name      string      `json:"name"`
	URL       string      `json:"url"`
	Size      int64       `json:"size"`
	MimeType  string      `json:"mimeType,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Collaborator is a user with access to a capsule. Exactly one collaborator
// per capsule is expected to hold RoleOwner; the backend enforces this.
type Collaborator struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Role     CollaboratorRole `json:"role"`
	JoinedAt time.Time        `json:"joinedAt"`
	Avatar   string           `json:"avatar,omitempty"`
}

// Attachment is a local file to upload when sealing a capsule.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}
