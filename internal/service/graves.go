package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/model"
)

// ErrNotShared is returned by ShareLink for capsules without a share id.
var ErrNotShared = errors.New("capsule has not been shared")

// CreateCapsuleInput is the data collected by the creation wizard.
type CreateCapsuleInput struct {
	Title       string
	Message     string
	OpenDate    time.Time
	Attachments []model.Attachment
}

// createCapsuleBody is the JSON request; unlockDate is a calendar date,
// not a timestamp.
type createCapsuleBody struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	UnlockDate string `json:"unlockDate"`
}

// GravesService talks to the /api/graves endpoints.
type GravesService struct {
	client *api.Client
}

// NewGravesService creates a GravesService over client.
func NewGravesService(client *api.Client) *GravesService {
	return &GravesService{client: client}
}

// Create seals a new capsule. Attachments switch the request to a
// multipart upload.
func (s *GravesService) Create(ctx context.Context, in CreateCapsuleInput) (*model.TimeCapsule, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	fields, err := convert.SnakeizeStruct(createCapsuleBody{
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Message,
		UnlockDate: convert.FormatDateToISO(in.OpenDate),
	})
	if err != nil {
		return nil, err
	}

	var resp *api.Response
	if len(in.Attachments) == 0 {
		resp, err = s.client.Post(ctx, "/api/graves", fields)
	} else {
		var body []byte
		var contentType string
		body, contentType, err = encodeMultipart(fields, in.Attachments)
		if err != nil {
			return nil, fmt.Errorf("encoding attachments: %w", err)
		}
		resp, err = s.client.PostMultipart(ctx, "/api/graves", body, contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("creating capsule: %w", err)
	}

	tomb, err := api.DecodeAs[Tombstone](resp)
	if err != nil {
		return nil, fmt.Errorf("creating capsule: %w", err)
	}
	capsule := tomb.ToTimeCapsule()
	return &capsule, nil
}

// List returns every capsule in the user's graveyard.
func (s *GravesService) List(ctx context.Context) ([]model.TimeCapsule, error) {
	resp, err := s.client.Get(ctx, "/api/graves")
	if err != nil {
		return nil, fmt.Errorf("listing capsules: %w", err)
	}

	tombs, err := api.DecodeAs[[]Tombstone](resp)
	if err != nil {
		return nil, fmt.Errorf("listing capsules: %w", err)
	}

	capsules := make([]model.TimeCapsule, 0, len(tombs))
	for _, t := range tombs {
		capsules = append(capsules, t.ToTimeCapsule())
	}
	return capsules, nil
}

// Get returns a single capsule. Contents are only present once unlocked.
func (s *GravesService) Get(ctx context.Context, id string) (*model.TimeCapsule, error) {
	if strings.TrimSpace(id) == "" {
		return nil, api.NewError(api.KindValidation, "A capsule id is required.")
	}

	resp, err := s.client.Get(ctx, "/api/graves/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("fetching capsule %s: %w", id, err)
	}

	tomb, err := api.DecodeAs[Tombstone](resp)
	if err != nil {
		return nil, fmt.Errorf("fetching capsule %s: %w", id, err)
	}
	capsule := tomb.ToTimeCapsule()
	return &capsule, nil
}

// Download streams an attachment into w.
func (s *GravesService) Download(ctx context.Context, content model.TimeCapsuleContent, w io.Writer) (int64, error) {
	if content.URL == "" {
		return 0, api.NewError(api.KindValidation, "This attachment has no download link.")
	}
	n, err := s.client.Download(ctx, content.URL, w)
	if err != nil {
		return n, fmt.Errorf("downloading %s: %w", content.Name, err)
	}
	return n, nil
}

// ShareLink returns the public link for a capsule, preferring the URL the
// backend supplied and otherwise building one from shareBaseURL.
func ShareLink(shareBaseURL string, c model.TimeCapsule) (string, error) {
	if c.ShareURL != "" {
		return c.ShareURL, nil
	}
	if c.ShareID == "" {
		return "", ErrNotShared
	}
	base := strings.TrimRight(shareBaseURL, "/")
	return base + "/share/" + url.PathEscape(c.ShareID), nil
}

func validateCreate(in CreateCapsuleInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return api.NewError(api.KindValidation, "A title is required.")
	}
	if in.OpenDate.IsZero() {
		return api.NewError(api.KindValidation, "An unlock date is required.")
	}
	return nil
}

// encodeMultipart writes fields as form values and attachments as "files"
// parts.
// quoteEscaper escapes a quoted header parameter the way mime/multipart
// does; other bytes, including UTF-8, pass through.
var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func encodeMultipart(fields map[string]any, attachments []model.Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, fmt.Sprint(v)); err != nil {
			return nil, "", err
		}
	}

	for _, a := range attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(a.Name)))
		mimeType := a.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h.Set("Content-Type", mimeType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
