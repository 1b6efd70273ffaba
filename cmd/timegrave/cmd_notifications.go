package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/timegrave/internal/notify"
	"github.com/nhle/timegrave/internal/render"
	"github.com/nhle/timegrave/internal/service"
)

var (
	listUnread    bool
	listLimit     int
	watchInterval time.Duration
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notes"},
	Short:   "Read and follow notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsList,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotificationsRead,
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsReadAll,
}

var notificationsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of unread notifications",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsCount,
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print new notifications as they arrive",
	Long: `Polls for unread notifications until interrupted, printing each one once.
Stops when the session expires.`,
	Args: cobra.NoArgs,
	RunE: runNotificationsWatch,
}

func init() {
	notificationsListCmd.Flags().BoolVarP(&listUnread, "unread", "u", false, "Only unread notifications")
	notificationsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number to show")
	notificationsWatchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval (default notify.interval_sec)")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	notificationsCmd.AddCommand(notificationsCountCmd)
	notificationsCmd.AddCommand(notificationsWatchCmd)
}

func runNotificationsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	list, err := env.services.Notifications.List(ctx, service.NotificationFilter{UnreadOnly: listUnread, Limit: listLimit})
	if err != nil {
		return err
	}
	say(cmd, render.NotificationList(list, env.now()))
	return nil
}

func runNotificationsRead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	if err := env.services.Notifications.MarkRead(ctx, args[0]); err != nil {
		return err
	}
	say(cmd, render.SuccessStyle.Render("Marked as read."))
	return nil
}

func runNotificationsReadAll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	if err := env.services.Notifications.MarkAllRead(ctx); err != nil {
		return err
	}
	say(cmd, render.SuccessStyle.Render("All caught up."))
	return nil
}

func runNotificationsCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	n, err := env.services.Notifications.UnreadCount(ctx)
	if err != nil {
		return err
	}
	say(cmd, fmt.Sprint(n))
	return nil
}

func runNotificationsWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	interval := watchInterval
	if interval <= 0 {
		interval = env.interval
	}

	var expired bool
	w := notify.New(env.services.Notifications, func(r notify.Result) {
		if r.SessionExpired {
			expired = true
			return
		}
		if r.Err != nil {
			// Already logged by the watcher; keep polling.
			return
		}
		for _, n := range r.New {
			say(cmd, render.Notification(n, env.now()))
		}
	}, notify.WithInterval(interval), notify.WithLogger(env.logger))

	say(cmd, render.HelpStyle.Render(fmt.Sprintf("Watching for notifications every %s. Press Ctrl+C to stop.", interval)))
	w.Start(ctx)
	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	w.Stop()

	if expired {
		return fmt.Errorf("session expired while watching")
	}
	return nil
}
