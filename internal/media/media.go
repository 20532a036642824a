package media

import (
	"context"
	"errors"
	"io"
	"strings"

	"messenger-service/internal/models"
)

// ErrUpload wraps every failure of the remote blob store.
var ErrUpload = errors.New("blob store upload failed")

// Object is one file handed to the blob store.
type Object struct {
	OwnerID     string
	ChatID      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Stored describes an uploaded object.
type Stored struct {
	Key          string
	URL          string
	ThumbnailURL string
	Type         models.MessageType
}

// Store uploads media and returns where it can be fetched from.
type Store interface {
	Store(ctx context.Context, obj Object) (Stored, error)
}

// TypeFor maps a MIME type onto a message type.
func TypeFor(contentType string) models.MessageType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MessageImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MessageVideo
	default:
		return models.MessageFile
	}
}
