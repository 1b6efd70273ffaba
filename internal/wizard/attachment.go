package wizard

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/nhle/timegrave/internal/model"
)

// MaxAttachmentSize caps a single uploaded file.
const MaxAttachmentSize = 50 << 20

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("attachment %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("attachment %s is a directory", path)
	}
	if info.Size() > MaxAttachmentSize {
		return fmt.Errorf("attachment %s is larger than %d MB", path, MaxAttachmentSize>>20)
	}
	return nil
}

// LoadAttachment reads a local file for upload. The MIME type comes from
// the extension, falling back to content sniffing.
func LoadAttachment(path string) (model.Attachment, error) {
	if err := checkReadable(path); err != nil {
		return model.Attachment{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("reading attachment %s: %w", path, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return model.Attachment{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Data:     data,
	}, nil
}

// LoadAttachments loads every path, stopping at the first failure.
func LoadAttachments(paths []string) ([]model.Attachment, error) {
	var out []model.Attachment
	for _, p := range paths {
		a, err := LoadAttachment(p)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
