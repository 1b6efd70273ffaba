package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/render"
	"github.com/nhle/timegrave/internal/wizard"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Notification preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show notification preferences",
	Args:  cobra.NoArgs,
	RunE:  runPrefsGet,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set [key=on|off]...",
	Short: "Change notification preferences",
	Long: `Switches preferences by key, for example:
  timegrave prefs set weekly_digest=on push_notifications=off

Without arguments, an interactive checklist is shown. Keys are listed by
'timegrave prefs get'.`,
	RunE: runPrefsSet,
}

func init() {
	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}

func runPrefsGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	prefs, err := env.services.Notifications.Preferences(ctx)
	if err != nil {
		return err
	}
	say(cmd, render.Preferences(*prefs))
	return nil
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	current, err := env.services.Notifications.Preferences(ctx)
	if err != nil {
		return err
	}

	var next model.NotificationPreferences
	if len(args) == 0 {
		if !interactive() {
			return fmt.Errorf("give at least one key=on|off when not running in a terminal")
		}
		form := wizard.NewPreferencesForm(*current)
		if err := form.Run(ctx); err != nil {
			return err
		}
		next = form.Preferences()
	} else {
		if next, err = applyToggles(*current, args); err != nil {
			return err
		}
	}

	saved, err := env.services.Notifications.UpdatePreferences(ctx, next)
	if err != nil {
		return err
	}
	say(cmd, render.Preferences(*saved))
	return nil
}

// applyToggles applies key=value pairs to prefs. Values are on/off or
// anything strconv.ParseBool accepts.
func applyToggles(prefs model.NotificationPreferences, pairs []string) (model.NotificationPreferences, error) {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return prefs, fmt.Errorf("expected key=on|off, got %q", pair)
		}
		on, err := parseSwitch(value)
		if err != nil {
			return prefs, fmt.Errorf("%s: %w", key, err)
		}
		if err := prefs.Set(strings.TrimSpace(key), on); err != nil {
			return prefs, err
		}
	}
	return prefs, nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	on, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid value %q, use on or off", s)
	}
	return on, nil
}
