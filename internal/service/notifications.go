package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/model"
)

// NotificationFilter narrows a notification listing.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

func (f NotificationFilter) query() string {
	q := url.Values{}
	if f.UnreadOnly {
		q.Set("unread_only", "true")
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// NotificationService talks to the /api/notifications endpoints.
type NotificationService struct {
	client *api.Client
}

// NewNotificationService creates a NotificationService over client.
func NewNotificationService(client *api.Client) *NotificationService {
	return &NotificationService{client: client}
}

// List returns notifications, newest first as ordered by the backend.
func (s *NotificationService) List(ctx context.Context, filter NotificationFilter) ([]model.Notification, error) {
	resp, err := s.client.Get(ctx, "/api/notifications"+filter.query())
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	list, err := api.CamelAs[[]model.Notification](resp)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// UnreadCount returns how many notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	resp, err := s.client.Get(ctx, "/api/notifications/unread-count")
	if err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}

	var body struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := resp.DecodeCamel(&body); err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return body.UnreadCount, nil
}

// MarkRead flags a single notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return api.NewError(api.KindValidation, "A notification id is required.")
	}
	if _, err := s.client.Put(ctx, "/api/notifications/"+url.PathEscape(id)+"/read", nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead flags every notification as read.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	if _, err := s.client.Put(ctx, "/api/notifications/read-all", nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Preferences fetches the user's notification toggles.
func (s *NotificationService) Preferences(ctx context.Context) (*model.NotificationPreferences, error) {
	resp, err := s.client.Get(ctx, "/api/notifications/preferences")
	if err != nil {
		return nil, fmt.Errorf("fetching notification preferences: %w", err)
	}

	prefs, err := api.CamelAs[model.NotificationPreferences](resp)
	if err != nil {
		return nil, fmt.Errorf("fetching notification preferences: %w", err)
	}
	return &prefs, nil
}

// UpdatePreferences replaces the user's notification toggles and returns
// what the server stored. An empty reply echoes prefs back.
func (s *NotificationService) UpdatePreferences(
	ctx context.Context,
	prefs model.NotificationPreferences,
) (*model.NotificationPreferences, error) {
	body, err := convert.SnakeizeStruct(prefs)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Put(ctx, "/api/notifications/preferences", body)
	if err != nil {
		return nil, fmt.Errorf("saving notification preferences: %w", err)
	}

	saved := prefs
	if err := resp.DecodeCamel(&saved); err != nil {
		return nil, fmt.Errorf("saving notification preferences: %w", err)
	}
	return &saved, nil
}
