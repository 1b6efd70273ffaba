// Package render formats capsules, notifications and account details for
// the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section headers.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// PanelStyle wraps a single capsule.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle is used for failures.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// SuccessStyle is used for confirmations.
var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

var labelStyle = lipgloss.NewStyle().Bold(true)

// StatusStyle returns a color-coded style for a capsule status.
func StatusStyle(status model.CapsuleStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch status {
	case model.CapsuleUnlocked:
		return base.Foreground(ColorGreen)
	case model.CapsuleLocked:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// NotificationStyle returns a color-coded style for a notification type.
func NotificationStyle(t model.NotificationType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch t {
	case model.NotificationCapsuleUnlocked:
		return base.Foreground(ColorGreen)
	case model.NotificationCapsuleShared, model.NotificationCollaboratorAdded:
		return base.Foreground(ColorMagenta)
	case model.NotificationReminder:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorBlue)
	}
}

// CapsuleList renders one line per capsule. now is used for the relative
// open date.
func CapsuleList(capsules []model.TimeCapsule, now time.Time) string {
	if len(capsules) == 0 {
		return HelpStyle.Render("Your graveyard is empty. Seal a capsule with `timegrave graves create`.")
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("Graveyard (%d)", len(capsules))))
	b.WriteString("\n")
	for _, c := range capsules {
		fmt.Fprintf(&b, "%-6s %s %s %s\n",
			c.ID,
			StatusStyle(c.Status).Render(string(c.Status)),
			c.Title,
			HelpStyle.Render(opens(c, now)),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// CapsuleDetail renders a capsule in a panel. Sealed capsules show when
// they open instead of their contents.
func CapsuleDetail(c model.TimeCapsule, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(c.Title), StatusStyle(c.Status).Render(string(c.Status)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Id:"), c.ID)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Opens:"), opens(c, now))
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Sealed:"), humanize.RelTime(c.CreatedAt, now, "ago", "from now"))
	}

	if c.IsLocked() {
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("This capsule is still sealed."))
		return PanelStyle.Render(b.String())
	}

	if c.Description != "" {
		b.WriteString("\n")
		b.WriteString(c.Description)
		b.WriteString("\n")
	}
	if len(c.Contents) > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Attachments:"))
		for i, content := range c.Contents {
			fmt.Fprintf(&b, "\n  %d. %s [%s] %s", i+1, content.Name, content.Type, humanize.Bytes(uint64(max(content.Size, 0))))
		}
	}
	if len(c.Collaborators) > 0 {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Collaborators:"))
		for _, col := range c.Collaborators {
			fmt.Fprintf(&b, "\n  %s (%s)", col.Name, col.Role)
		}
	}
	return PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func opens(c model.TimeCapsule, now time.Time) string {
	if c.OpenDate.IsZero() {
		return "no open date"
	}
	date := convert.FormatDateToISO(c.OpenDate)
	if c.IsLocked() {
		return fmt.Sprintf("opens %s (%s)", date, humanize.RelTime(c.OpenDate, now, "ago", "from now"))
	}
	return "opened " + date
}

// NotificationList renders notifications newest first, marking unread ones.
func NotificationList(list []model.Notification, now time.Time) string {
	if len(list) == 0 {
		return HelpStyle.Render("No notifications.")
	}

	var b strings.Builder
	for _, n := range list {
		b.WriteString(Notification(n, now))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Notification renders a single notification line.
func Notification(n model.Notification, now time.Time) string {
	marker := " "
	if !n.IsRead {
		marker = "•"
	}
	line := fmt.Sprintf("%s %-10s %s: %s", marker, n.ID, NotificationStyle(n.Type).Render(n.Title), n.Message)
	if !n.CreatedAt.IsZero() {
		line += " " + HelpStyle.Render(humanize.RelTime(n.CreatedAt, now, "ago", "from now"))
	}
	return line
}

// Preferences renders the notification toggles with their keys.
func Preferences(p model.NotificationPreferences) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Notification preferences"))
	for _, t := range p.Toggles() {
		state := ErrorStyle.Render("off")
		if t.On {
			state = SuccessStyle.Render("on")
		}
		fmt.Fprintf(&b, "\n%-20s %-3s %s", t.Key, state, HelpStyle.Render(t.Label))
	}
	return b.String()
}

// User renders the signed-in account.
func User(u model.User) string {
	name := u.Username
	if name == "" {
		name = u.Email
	}
	out := fmt.Sprintf("%s %s <%s>", labelStyle.Render("Signed in as"), name, u.Email)
	if u.CreatedAt != nil && !u.CreatedAt.IsZero() {
		out += " " + HelpStyle.Render("member since "+convert.FormatDateToISO(*u.CreatedAt))
	}
	return out
}

// SessionExpiry renders when the stored session lapses.
func SessionExpiry(expiresAt, now time.Time) string {
	return HelpStyle.Render(fmt.Sprintf("Session expires %s (%s)",
		expiresAt.UTC().Format("2006-01-02 15:04 MST"),
		humanize.RelTime(expiresAt, now, "ago", "from now")))
}

// Error renders err for the user. API failures show their user-facing
// message; anything else shows its text.
func Error(err error) string {
	if apiErr, ok := api.AsError(err); ok {
		return ErrorStyle.Render("Error: ") + apiErr.Message
	}
	return ErrorStyle.Render("Error: ") + err.Error()
}
