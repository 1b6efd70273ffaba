package mock_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/mock"
	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/service"
	"github.com/nhle/timegrave/tests/testutil"
)

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAuth_SignUpSignInFlow(t *testing.T) {
	b := testutil.NewTestBackend(t)
	ctx := context.Background()

	u, err := b.SignUp(ctx, service.SignUpInput{Email: "a@b.com", Username: "ghost", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.ID("1"), u.ID)

	_, err = b.SignUp(ctx, service.SignUpInput{Email: "A@B.com", Password: "pw"})
	assert.True(t, api.IsKind(err, api.KindValidation))

	res, err := b.SignIn(ctx, service.SignInInput{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionToken)
	assert.Equal(t, "ghost", res.User.Username)

	// Not yet selected.
	_, err = b.CurrentUser(ctx)
	assert.True(t, api.IsUnauthorized(err))

	b.SetAuthToken(res.SessionToken)
	me, err := b.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", me.Email)
}

func TestAuth_WrongPasswordIsUnauthorized(t *testing.T) {
	b := testutil.NewTestBackend(t)
	ctx := context.Background()
	_, err := b.SignUp(ctx, service.SignUpInput{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	_, err = b.SignIn(ctx, service.SignInInput{Email: "a@b.com", Password: "nope"})
	require.Error(t, err)
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, api.KindUnauthorized, apiErr.Kind)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "Invalid email or password.", apiErr.Message)

	_, err = b.SignIn(ctx, service.SignInInput{Email: "who@b.com", Password: "pw"})
	assert.True(t, api.IsUnauthorized(err))
}

func TestAuth_ExpiredSessionRunsHandler(t *testing.T) {
	clock := testutil.NewClock(start)
	b := testutil.NewTestBackend(t, mock.WithClock(clock.Now), mock.WithSessionTTL(time.Hour))
	testutil.SignedIn(t, b, "a@b.com")

	calls := 0
	b.SetUnauthorizedHandler(func() { calls++ })

	_, err := b.CurrentUser(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = b.CurrentUser(context.Background())
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, 1, calls)
}

func TestAuth_SignOutAndDelete(t *testing.T) {
	b := testutil.NewTestBackend(t)
	ctx := context.Background()
	res := testutil.SignedIn(t, b, "a@b.com")

	require.NoError(t, b.SignOut(ctx))
	b.SetAuthToken(res.SessionToken)
	_, err := b.CurrentUser(ctx)
	assert.True(t, api.IsUnauthorized(err))

	testutil.SignedIn(t, b, "c@d.com")
	require.NoError(t, b.DeleteAccount(ctx))
	_, err = b.SignIn(ctx, service.SignInInput{Email: "c@d.com", Password: "pw"})
	assert.True(t, api.IsUnauthorized(err))
}

func TestGraves_LockedThenUnlocked(t *testing.T) {
	clock := testutil.NewClock(start)
	b := testutil.NewTestBackend(t, mock.WithClock(clock.Now))
	testutil.SignedIn(t, b, "a@b.com")
	graves := b.Graves()
	ctx := context.Background()

	created, err := graves.Create(ctx, service.CreateCapsuleInput{
		Title:       "Letter",
		Message:     "hello future",
		OpenDate:    start.AddDate(0, 0, 3),
		Attachments: []model.Attachment{{Name: "a.txt", MimeType: "text/plain", Data: []byte("abc")}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.CapsuleLocked, created.Status)
	assert.Empty(t, created.Description)
	assert.NotNil(t, created.Contents)
	assert.Empty(t, created.Contents)
	assert.NotEmpty(t, created.ShareID)

	clock.Advance(72 * time.Hour)

	got, err := graves.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CapsuleUnlocked, got.Status)
	assert.Equal(t, "hello future", got.Description)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, model.ContentText, got.Contents[0].Type)
	assert.Equal(t, int64(3), got.Contents[0].Size)

	var buf bytes.Buffer
	n, err := graves.Download(ctx, got.Contents[0], &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "abc", buf.String())
}

func TestGraves_UnlockNotifiesOnce(t *testing.T) {
	clock := testutil.NewClock(start)
	b := testutil.NewTestBackend(t, mock.WithClock(clock.Now))
	testutil.SignedIn(t, b, "a@b.com")
	ctx := context.Background()

	_, err := b.Graves().Create(ctx, service.CreateCapsuleInput{Title: "Soon", OpenDate: start.AddDate(0, 0, 1)})
	require.NoError(t, err)

	count, err := b.Notifications().UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	clock.Advance(24 * time.Hour)
	for range 3 {
		_, err := b.Graves().List(ctx)
		require.NoError(t, err)
	}

	list, err := b.Notifications().List(ctx, service.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationCapsuleUnlocked, list[0].Type)
	assert.Equal(t, model.ID("1"), list[0].TimeCapsuleID)
	assert.Equal(t, "Soon", list[0].TimeCapsuleTitle)
}

func TestNotifications_SweepAnnouncesUnlocks(t *testing.T) {
	clock := testutil.NewClock(start)
	b := testutil.NewTestBackend(t, mock.WithClock(clock.Now))
	testutil.SignedIn(t, b, "a@b.com")
	ctx := context.Background()

	_, err := b.Graves().Create(ctx, service.CreateCapsuleInput{Title: "Later", OpenDate: start.AddDate(0, 0, 2)})
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)

	// No grave read in between: the notification list itself finds it.
	unread, err := b.Notifications().List(ctx, service.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "Later", unread[0].TimeCapsuleTitle)

	_, err = b.Graves().List(ctx)
	require.NoError(t, err)
	count, err := b.Notifications().UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGraves_UnlockRespectsPreferences(t *testing.T) {
	b := testutil.NewTestBackend(t, mock.WithClock(func() time.Time { return start }))
	testutil.SignedIn(t, b, "a@b.com")
	ctx := context.Background()

	prefs := model.DefaultNotificationPreferences()
	prefs.CapsuleUnlocked = false
	_, err := b.Notifications().UpdatePreferences(ctx, prefs)
	require.NoError(t, err)

	_, err = b.Graves().Create(ctx, service.CreateCapsuleInput{Title: "Past", OpenDate: start.AddDate(0, 0, -1)})
	require.NoError(t, err)

	count, err := b.Notifications().UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGraves_Isolation(t *testing.T) {
	b := testutil.NewTestBackend(t)
	ctx := context.Background()

	testutil.SignedIn(t, b, "a@b.com")
	mine, err := b.Graves().Create(ctx, service.CreateCapsuleInput{Title: "Mine", OpenDate: start})
	require.NoError(t, err)

	testutil.SignedIn(t, b, "c@d.com")
	_, err = b.Graves().Get(ctx, mine.ID)
	assert.True(t, api.IsKind(err, api.KindNotFound))

	list, err := b.Graves().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGraves_Errors(t *testing.T) {
	b := testutil.NewTestBackend(t, mock.WithClock(func() time.Time { return start }))
	ctx := context.Background()

	_, err := b.Graves().List(ctx)
	assert.True(t, api.IsUnauthorized(err))

	testutil.SignedIn(t, b, "a@b.com")
	_, err = b.Graves().Create(ctx, service.CreateCapsuleInput{OpenDate: start})
	assert.True(t, api.IsKind(err, api.KindValidation))

	_, err = b.Graves().Get(ctx, "abc")
	assert.True(t, api.IsKind(err, api.KindNotFound))

	sealed, err := b.Graves().Create(ctx, service.CreateCapsuleInput{
		Title:       "Sealed",
		OpenDate:    start.AddDate(1, 0, 0),
		Attachments: []model.Attachment{{Name: "x.bin", Data: []byte{1}}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = b.Graves().Download(ctx, model.TimeCapsuleContent{URL: "mock://graves/" + sealed.ID + "/files/1"}, &buf)
	assert.True(t, api.IsKind(err, api.KindForbidden))

	_, err = b.Graves().Download(ctx, model.TimeCapsuleContent{URL: "https://elsewhere"}, &buf)
	assert.True(t, api.IsKind(err, api.KindNotFound))
}

func TestNotifications_Marking(t *testing.T) {
	b := testutil.NewTestBackend(t, mock.WithClock(func() time.Time { return start }))
	testutil.SignedIn(t, b, "a@b.com")
	ctx := context.Background()
	notes := b.Notifications()

	for _, title := range []string{"One", "Two"} {
		_, err := b.Graves().Create(ctx, service.CreateCapsuleInput{Title: title, OpenDate: start})
		require.NoError(t, err)
	}

	unread, err := notes.List(ctx, service.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 2)

	require.NoError(t, notes.MarkRead(ctx, unread[0].ID.String()))
	count, err := notes.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.True(t, api.IsKind(notes.MarkRead(ctx, "missing"), api.KindNotFound))

	require.NoError(t, notes.MarkAllRead(ctx))
	count, err = notes.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	limited, err := notes.List(ctx, service.NotificationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNotifications_Preferences(t *testing.T) {
	b := testutil.NewTestBackend(t)
	testutil.SignedIn(t, b, "a@b.com")
	ctx := context.Background()

	prefs, err := b.Notifications().Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultNotificationPreferences(), *prefs)

	want := *prefs
	want.WeeklyDigest = true
	want.PushNotifications = false
	_, err = b.Notifications().UpdatePreferences(ctx, want)
	require.NoError(t, err)

	got, err := b.Notifications().Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestOpen_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mock.db")
	ctx := context.Background()

	b, err := mock.Open(path)
	require.NoError(t, err)
	res := testutil.SignedIn(t, b, "a@b.com")
	require.NoError(t, b.Close())

	b, err = mock.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	b.SetAuthToken(res.SessionToken)
	me, err := b.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", me.Email)
}

func TestServices(t *testing.T) {
	b := testutil.NewTestBackend(t)
	set := b.Services()
	assert.NotNil(t, set.Auth)
	assert.NotNil(t, set.Graves)
	assert.NotNil(t, set.Notifications)
}
