// Package service shapes requests and responses for each group of TimeGrave
// endpoints. Services are stateless: they never touch the token store or the
// client's auth header. The session layer does that.
package service

import (
	"context"
	"io"

	"github.com/nhle/timegrave/internal/model"
)

// AuthAPI covers account and session endpoints.
type AuthAPI interface {
	SignUp(ctx context.Context, in SignUpInput) (*model.User, error)
	SignIn(ctx context.Context, in SignInInput) (*SignInResult, error)
	SignOut(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
	CurrentUser(ctx context.Context) (*model.User, error)
}

// GravesAPI covers time capsule endpoints.
type GravesAPI interface {
	Create(ctx context.Context, in CreateCapsuleInput) (*model.TimeCapsule, error)
	List(ctx context.Context) ([]model.TimeCapsule, error)
	Get(ctx context.Context, id string) (*model.TimeCapsule, error)
	Download(ctx context.Context, content model.TimeCapsuleContent, w io.Writer) (int64, error)
}

// NotificationAPI covers notification and preference endpoints.
type NotificationAPI interface {
	List(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Preferences(ctx context.Context) (*model.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, prefs model.NotificationPreferences) (*model.NotificationPreferences, error)
}

// Set bundles one implementation of each API.
type Set struct {
	Auth          AuthAPI
	Graves        GravesAPI
	Notifications NotificationAPI
}
