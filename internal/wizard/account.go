package wizard

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/timegrave/internal/service"
)

type credentialBindings struct {
	email    string
	username string
	password string
	confirm  string
}

// AccountForm asks for credentials. Sign-up mode also asks for a username
// and a repeated password.
type AccountForm struct {
	fb         *credentialBindings
	signUp     bool
	accessible bool
}

// NewSignInForm creates a sign-in form, optionally with the email filled in.
func NewSignInForm(email string) *AccountForm {
	return &AccountForm{fb: &credentialBindings{email: email}}
}

// NewSignUpForm creates a registration form.
func NewSignUpForm(email, username string) *AccountForm {
	return &AccountForm{fb: &credentialBindings{email: email, username: username}, signUp: true}
}

// Accessible switches the form to plain line prompts.
func (f *AccountForm) Accessible(on bool) *AccountForm {
	f.accessible = on
	return f
}

func (f *AccountForm) build() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(&f.fb.email).
			Validate(validateEmail),
	}
	if f.signUp {
		fields = append(fields,
			huh.NewInput().
				Title("Username").
				Value(&f.fb.username).
				Validate(validateRequired("Username")),
		)
	}
	fields = append(fields,
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&f.fb.password).
			Validate(validateRequired("Password")),
	)
	if f.signUp {
		fields = append(fields,
			huh.NewInput().
				Title("Repeat password").
				EchoMode(huh.EchoModePassword).
				Value(&f.fb.confirm).
				Validate(f.validateConfirm),
		)
	}
	return huh.NewForm(huh.NewGroup(fields...)).WithAccessible(f.accessible)
}

// Run shows the form until it is submitted, aborted or ctx is done.
func (f *AccountForm) Run(ctx context.Context) error {
	return f.build().RunWithContext(ctx)
}

// SignIn returns the collected sign-in credentials.
func (f *AccountForm) SignIn() (service.SignInInput, error) {
	if err := f.check(); err != nil {
		return service.SignInInput{}, err
	}
	return service.SignInInput{Email: strings.TrimSpace(f.fb.email), Password: f.fb.password}, nil
}

// SignUp returns the collected registration details.
func (f *AccountForm) SignUp() (service.SignUpInput, error) {
	if err := f.check(); err != nil {
		return service.SignUpInput{}, err
	}
	if err := validateRequired("Username")(f.fb.username); err != nil {
		return service.SignUpInput{}, err
	}
	if err := f.validateConfirm(f.fb.confirm); err != nil {
		return service.SignUpInput{}, err
	}
	return service.SignUpInput{
		Email:    strings.TrimSpace(f.fb.email),
		Username: strings.TrimSpace(f.fb.username),
		Password: f.fb.password,
	}, nil
}

func (f *AccountForm) check() error {
	if err := validateEmail(f.fb.email); err != nil {
		return err
	}
	return validateRequired("Password")(f.fb.password)
}

func (f *AccountForm) validateConfirm(s string) error {
	if s != f.fb.password {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

func validateEmail(s string) error {
	if err := validateRequired("Email")(s); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
