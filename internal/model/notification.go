package model

import (
	"fmt"
	"time"
)

// NotificationType identifies what happened to trigger a notification.
type NotificationType string

const (
	NotificationCapsuleUnlocked   NotificationType = "capsule_unlocked"
	NotificationCapsuleShared     NotificationType = "capsule_shared"
	NotificationCollaboratorAdded NotificationType = "collaborator_added"
	NotificationReminder          NotificationType = "reminder"
	NotificationSystem            NotificationType = "system"
)

// Notification represents an alert surfaced to the user about activity on
// one of their capsules.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID ID `json:"id"`

	// Type is the kind of event that produced the notification.
	Type NotificationType `json:"type"`

	Title string `json:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// TimeCapsuleID links this notification to a capsule, when there is one.
	TimeCapsuleID    ID     `json:"timeCapsuleId,omitempty"`
	TimeCapsuleTitle string `json:"timeCapsuleTitle,omitempty"`

	// IsRead indicates whether the user has seen this notification.
	IsRead bool `json:"isRead"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"createdAt"`

	ActionURL string         `json:"actionUrl,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NotificationPreferences holds the per-user notification toggles. Saving
// replaces the whole record.
type NotificationPreferences struct {
	EmailNotifications bool `json:"emailNotifications"`
	PushNotifications  bool `json:"pushNotifications"`
	CapsuleUnlocked    bool `json:"capsuleUnlocked"`
	CapsuleShared      bool `json:"capsuleShared"`
	CollaboratorAdded  bool `json:"collaboratorAdded"`
	Reminders          bool `json:"reminders"`
	WeeklyDigest       bool `json:"weeklyDigest"`
}

// DefaultNotificationPreferences is what a new account starts with.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		EmailNotifications: true,
		PushNotifications:  true,
		CapsuleUnlocked:    true,
		CapsuleShared:      true,
		CollaboratorAdded:  true,
		Reminders:          true,
		WeeklyDigest:       false,
	}
}

// Toggle is one named preference switch.
type Toggle struct {
	Key   string
	Label string
	On    bool
}

// Toggles lists every preference in display order. Keys match the
// backend's snake_case field names.
func (p NotificationPreferences) Toggles() []Toggle {
	return []Toggle{
		{Key: "email_notifications", Label: "Email notifications", On: p.EmailNotifications},
		{Key: "push_notifications", Label: "Push notifications", On: p.PushNotifications},
		{Key: "capsule_unlocked", Label: "Capsule unlocked", On: p.CapsuleUnlocked},
		{Key: "capsule_shared", Label: "Capsule shared", On: p.CapsuleShared},
		{Key: "collaborator_added", Label: "Collaborator added", On: p.CollaboratorAdded},
		{Key: "reminders", Label: "Reminders", On: p.Reminders},
		{Key: "weekly_digest", Label: "Weekly digest", On: p.WeeklyDigest},
	}
}

// Set switches the preference named key.
func (p *NotificationPreferences) Set(key string, on bool) error {
	switch key {
	case "email_notifications":
		p.EmailNotifications = on
	case "push_notifications":
		p.PushNotifications = on
	case "capsule_unlocked":
		p.CapsuleUnlocked = on
	case "capsule_shared":
		p.CapsuleShared = on
	case "collaborator_added":
		p.CollaboratorAdded = on
	case "reminders":
		p.Reminders = on
	case "weekly_digest":
		p.WeeklyDigest = on
	default:
		return fmt.Errorf("unknown preference %q", key)
	}
	return nil
}
