package mock

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"

	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/service"
)

type userRow struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	Username     string `db:"username"`
	PasswordHash []byte `db:"password_hash"`
	PasswordSalt []byte `db:"password_salt"`
	CreatedAt    string `db:"created_at"`
}

func (r userRow) toUser() model.User {
	created := parseStamp(r.CreatedAt)
	return model.User{
		ID:        model.ID(itoa(r.ID)),
		Email:     r.Email,
		Username:  r.Username,
		CreatedAt: &created,
	}
}

// hashPassword uses light argon2id parameters; the mock never guards real
// credentials.
func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 8*1024, 1, 32)
}

// SignUp registers an account. Emails are unique, case-insensitively.
func (b *Backend) SignUp(ctx context.Context, in service.SignUpInput) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, fail(400, "Email and password are required.")
	}

	var exists int
	if err := b.db.GetContext(ctx, &exists, "SELECT COUNT(*) FROM users WHERE email = ?", email); err != nil {
		return nil, storageErr(err)
	}
	if exists > 0 {
		return nil, fail(400, "An account with this email already exists.")
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, storageErr(err)
	}

	row := userRow{
		Email:        email,
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hashPassword(in.Password, salt),
		PasswordSalt: salt,
		CreatedAt:    b.stamp(),
	}
	res, err := b.db.ExecContext(ctx, `
		INSERT INTO users (email, username, password_hash, password_salt, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		row.Email, row.Username, row.PasswordHash, row.PasswordSalt, row.CreatedAt,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	row.ID, _ = res.LastInsertId()

	b.logger.Debug("mock user created", zap.Int64("user_id", row.ID))
	user := row.toUser()
	return &user, nil
}

// SignIn checks credentials and opens a session. It does not select the
// session; the caller applies the returned token.
func (b *Backend) SignIn(ctx context.Context, in service.SignInInput) (*service.SignInResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, fail(400, "Email and password are required.")
	}

	var row userRow
	err := b.db.GetContext(ctx, &row, "SELECT * FROM users WHERE email = ?", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, b.unauthorized("Invalid email or password.")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if subtle.ConstantTimeCompare(row.PasswordHash, hashPassword(in.Password, row.PasswordSalt)) != 1 {
		return nil, b.unauthorized("Invalid email or password.")
	}

	token := uuid.New().String()
	expires := b.now().Add(b.ttl)
	_, err = b.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, row.ID, expires.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, storageErr(err)
	}

	return &service.SignInResult{
		User:         row.toUser(),
		SessionToken: token,
		ExpiresAt:    convert.FormatDateTimeToISO(expires),
	}, nil
}

// SignOut ends the current session.
func (b *Backend) SignOut(ctx context.Context) error {
	if _, err := b.authorize(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	token := b.token
	b.mu.Unlock()

	if _, err := b.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return storageErr(err)
	}
	return nil
}

// DeleteAccount removes the signed-in user and everything they own.
func (b *Backend) DeleteAccount(ctx context.Context) error {
	userID, err := b.authorize(ctx)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID); err != nil {
		return storageErr(err)
	}
	b.logger.Debug("mock user deleted", zap.Int64("user_id", userID))
	return nil
}

// CurrentUser returns the account behind the current session.
func (b *Backend) CurrentUser(ctx context.Context) (*model.User, error) {
	userID, err := b.authorize(ctx)
	if err != nil {
		return nil, err
	}

	var row userRow
	if err := b.db.GetContext(ctx, &row, "SELECT * FROM users WHERE id = ?", userID); err != nil {
		return nil, storageErr(err)
	}
	user := row.toUser()
	return &user, nil
}
