// Package wizard holds the interactive huh forms used by the CLI.
package wizard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/service"
)

// capsuleBindings holds form field values on the heap so huh's Value()
// pointers stay valid.
type capsuleBindings struct {
	title    string
	message  string
	openDate string
	files    string
}

// CapsuleForm collects everything needed to seal a capsule.
type CapsuleForm struct {
	fb         *capsuleBindings
	now        time.Time
	accessible bool
}

// NewCapsuleForm creates an empty form. now anchors the open date check.
func NewCapsuleForm(now time.Time) *CapsuleForm {
	return &CapsuleForm{
		fb:  &capsuleBindings{},
		now: now,
	}
}

// Accessible switches the form to plain line prompts, for terminals that
// cannot draw the full UI.
func (f *CapsuleForm) Accessible(on bool) *CapsuleForm {
	f.accessible = on
	return f
}

// Prefill seeds the form, typically from command-line flags.
func (f *CapsuleForm) Prefill(title, message, openDate string, files []string) {
	f.fb.title = title
	f.fb.message = message
	f.fb.openDate = openDate
	f.fb.files = strings.Join(files, ", ")
}

func (f *CapsuleForm) build() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What lies buried here?").
				Value(&f.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Message").
				Placeholder("Words for your future self...").
				Value(&f.fb.message),
			huh.NewInput().
				Title("Open date").
				Placeholder("YYYY-MM-DD").
				Value(&f.fb.openDate).
				Validate(validateFutureDate(f.now)),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Attachments").
				Description("Comma-separated file paths (optional)").
				Value(&f.fb.files).
				Validate(validateFiles),
		),
	).WithAccessible(f.accessible)
}

// Run shows the form until it is submitted, aborted or ctx is done.
func (f *CapsuleForm) Run(ctx context.Context) error {
	return f.build().RunWithContext(ctx)
}

// Input validates the collected values and loads the attachments.
func (f *CapsuleForm) Input() (service.CreateCapsuleInput, error) {
	if err := validateRequired("Title")(f.fb.title); err != nil {
		return service.CreateCapsuleInput{}, err
	}
	if err := validateFutureDate(f.now)(f.fb.openDate); err != nil {
		return service.CreateCapsuleInput{}, err
	}
	openDate, _ := time.ParseInLocation(convert.DateLayout, strings.TrimSpace(f.fb.openDate), time.UTC)

	attachments, err := LoadAttachments(splitPaths(f.fb.files))
	if err != nil {
		return service.CreateCapsuleInput{}, err
	}

	return service.CreateCapsuleInput{
		Title:       strings.TrimSpace(f.fb.title),
		Message:     f.fb.message,
		OpenDate:    openDate,
		Attachments: attachments,
	}, nil
}

func splitPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

// validateFutureDate accepts a YYYY-MM-DD date strictly after now's day.
func validateFutureDate(now time.Time) func(string) error {
	return func(s string) error {
		if err := validateRequired("Open date")(s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		d, err := time.ParseInLocation(convert.DateLayout, s, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD")
		}
		today := convert.FormatDateToISO(now.UTC())
		if convert.FormatDateToISO(d) <= today {
			return fmt.Errorf("open date must be after %s", today)
		}
		return nil
	}
}

func validateFiles(s string) error {
	for _, p := range splitPaths(s) {
		if err := checkReadable(p); err != nil {
			return err
		}
	}
	return nil
}
