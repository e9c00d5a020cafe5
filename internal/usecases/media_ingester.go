package usecases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"gartenconnect/internal/entities"
	"gartenconnect/internal/interfaces"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const mediaFolder = "images"

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// MediaIngester turns an inbound attachment into a public URL
type MediaIngester struct {
	transport interfaces.Transport
	store     interfaces.BlobStore
	now       func() time.Time
}

func NewMediaIngester(transport interfaces.Transport, store interfaces.BlobStore) *MediaIngester {
	return &MediaIngester{transport: transport, store: store, now: time.Now}
}

// Ingest decrypts the pending media of msg and uploads it. Every failure is a *entities.StorageError.
func (m *MediaIngester) Ingest(ctx context.Context, msg entities.NormalizedMessage, eventID string) (string, error) {
	if msg.PendingMedia == nil {
		return "", &entities.StorageError{Op: "download", Err: errors.New("message has no media")}
	}

	data, err := m.transport.DownloadImage(ctx, msg.PendingMedia)
	if err != nil {
		return "", &entities.StorageError{Op: "download", Err: err}
	}
	if len(data) == 0 {
		return "", &entities.StorageError{Op: "download", Err: errors.New("empty media")}
	}

	mime := mimetype.Detect(data)
	contentType := msg.PendingMedia.Mimetype
	if contentType == "" {
		contentType = mime.String()
	}

	key := m.ObjectKey(eventID, mime.Extension())
	url, err := m.store.Put(ctx, key, data, contentType)
	if err != nil {
		return "", &entities.StorageError{Op: "upload", Err: err}
	}
	return url, nil
}

// ObjectKey names the stored object: category folder, message id and upload second.
func (m *MediaIngester) ObjectKey(eventID, ext string) string {
	id := unsafeKeyChars.ReplaceAllString(eventID, "_")
	if id == "" {
		id = uuid.NewString()
	}
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/whatsapp_%s_%d%s", mediaFolder, id, m.now().Unix(), ext)
}
