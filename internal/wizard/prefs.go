package wizard

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"

	"github.com/nhle/timegrave/internal/model"
)

// PreferencesForm edits notification preferences as a multi-select.
type PreferencesForm struct {
	base       model.NotificationPreferences
	selected   *[]string
	accessible bool
}

// NewPreferencesForm starts from the current preferences.
func NewPreferencesForm(current model.NotificationPreferences) *PreferencesForm {
	var on []string
	for _, t := range current.Toggles() {
		if t.On {
			on = append(on, t.Key)
		}
	}
	return &PreferencesForm{base: current, selected: &on}
}

// Accessible switches the form to plain line prompts.
func (f *PreferencesForm) Accessible(on bool) *PreferencesForm {
	f.accessible = on
	return f
}

func (f *PreferencesForm) build() *huh.Form {
	toggles := f.base.Toggles()
	opts := make([]huh.Option[string], len(toggles))
	for i, t := range toggles {
		opts[i] = huh.NewOption(t.Label, t.Key)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Notify me about").
				Options(opts...).
				Value(f.selected),
		),
	).WithAccessible(f.accessible)
}

// Run shows the form until it is submitted, aborted or ctx is done.
func (f *PreferencesForm) Run(ctx context.Context) error {
	return f.build().RunWithContext(ctx)
}

// Preferences returns the full record: selected toggles on, the rest off.
func (f *PreferencesForm) Preferences() model.NotificationPreferences {
	chosen := make(map[string]bool, len(*f.selected))
	for _, k := range *f.selected {
		chosen[k] = true
	}

	prefs := f.base
	for _, t := range prefs.Toggles() {
		// Keys come from Toggles, so Set cannot fail.
		_ = prefs.Set(t.Key, chosen[t.Key])
	}
	return prefs
}

// Confirm asks a yes/no question. Aborting counts as no.
func Confirm(ctx context.Context, title string, accessible bool) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithAccessible(accessible).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}
