package interfaces

import (
	"context"

	"gartenconnect/internal/entities"
)

// Transport is the live chat session as seen by the pipeline
type Transport interface {
	Send(ctx context.Context, chatID string, unit entities.RenderUnit) error
	DownloadImage(ctx context.Context, img *entities.ImageAttachment) ([]byte, error)
	Self() (entities.SelfIdentity, bool)
}

// Presence is optionally implemented by transports that can show a typing indicator
type Presence interface {
	SendTyping(ctx context.Context, chatID string)
}

type BlobStore interface {
	// Put stores data under key and returns a publicly fetchable URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Classifier interface {
	Process(ctx context.Context, req entities.ClassifierRequest) entities.BackendReply
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Deduplicator reports whether a message id is seen for the first time
type Deduplicator interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
}

type UsageRecorder interface {
	IncrementReceived(ctx context.Context, chatID string) error
	IncrementSent(ctx context.Context, chatID string, n int) error
}
