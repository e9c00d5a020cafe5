package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"gartenconnect/internal/entities"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

	botIdentity = entities.SelfIdentity{
		LongID:  "34911000000:12@s.whatsapp.net",
		ShortID: "34911000000@s.whatsapp.net",
	}
)

const (
	directChat = "34600111222@s.whatsapp.net"
	groupChat  = "120363000000000001@g.us"
)

type sentUnit struct {
	chatID string
	unit   entities.RenderUnit
}

type fakeTransport struct {
	mu        sync.Mutex
	sent      []sentUnit
	downloads int
	typing    int

	self        entities.SelfIdentity
	selfKnown   bool
	media       []byte
	downloadErr error
	// sendErr decides per unit whether Send fails
	sendErr func(unit entities.RenderUnit) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{self: botIdentity, selfKnown: true, media: jpegBytes}
}

func (f *fakeTransport) Send(_ context.Context, chatID string, unit entities.RenderUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		if err := f.sendErr(unit); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sentUnit{chatID: chatID, unit: unit})
	return nil
}

func (f *fakeTransport) DownloadImage(_ context.Context, _ *entities.ImageAttachment) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.media, nil
}

func (f *fakeTransport) Self() (entities.SelfIdentity, bool) {
	return f.self, f.selfKnown
}

func (f *fakeTransport) SendTyping(_ context.Context, _ string) {
	f.mu.Lock()
	f.typing++
	f.mu.Unlock()
}

func (f *fakeTransport) units() []entities.RenderUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entities.RenderUnit, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.unit)
	}
	return out
}

type putCall struct {
	key         string
	contentType string
	size        int
}

type fakeBlobStore struct {
	mu   sync.Mutex
	puts []putCall
	err  error
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.puts = append(f.puts, putCall{key: key, contentType: contentType, size: len(data)})
	return "https://cdn.example.com/" + key, nil
}

type fakeClassifier struct {
	mu    sync.Mutex
	reqs  []entities.ClassifierRequest
	reply entities.BackendReply
	panic bool
}

func (f *fakeClassifier) Process(_ context.Context, req entities.ClassifierRequest) entities.BackendReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.panic {
		panic("classifier exploded")
	}
	return f.reply
}

func (f *fakeClassifier) requests() []entities.ClassifierRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.ClassifierRequest(nil), f.reqs...)
}

type fetchStub struct {
	data  []byte
	err   error
	delay time.Duration
}

type fakeFetcher struct {
	mu    sync.Mutex
	stubs map[string]fetchStub
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	stub, ok := f.stubs[url]
	f.mu.Unlock()

	if !ok {
		return nil, errors.New("not found")
	}
	if stub.delay > 0 {
		select {
		case <-time.After(stub.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return stub.data, stub.err
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeDedup) FirstSeen(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

type fakeUsage struct {
	mu       sync.Mutex
	received map[string]int
	sent     map[string]int
}

func (f *fakeUsage) IncrementReceived(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.received == nil {
		f.received = map[string]int{}
	}
	f.received[chatID]++
	return nil
}

func (f *fakeUsage) IncrementSent(_ context.Context, chatID string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string]int{}
	}
	f.sent[chatID] += n
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func strPtr(s string) *string { return &s }

func plain(content *entities.Content) *entities.Envelope {
	return &entities.Envelope{Kind: entities.EnvelopePlain, Content: content}
}

func wrap(kind entities.EnvelopeKind, inner *entities.Envelope) *entities.Envelope {
	return &entities.Envelope{Kind: kind, Inner: inner}
}

func textEvent(id, chatID, text string, mentions ...string) entities.InboundEvent {
	return entities.InboundEvent{
		ID:        id,
		ChatID:    chatID,
		SenderID:  "34600999888@s.whatsapp.net",
		Timestamp: time.Unix(1700000000, 0),
		Envelope:  plain(&entities.Content{Conversation: strPtr(text), Mentions: mentions}),
	}
}

func imageEvent(id, chatID string, mentions ...string) entities.InboundEvent {
	return entities.InboundEvent{
		ID:        id,
		ChatID:    chatID,
		SenderID:  "34600999888@s.whatsapp.net",
		Timestamp: time.Unix(1700000000, 0),
		Envelope: plain(&entities.Content{
			Image:    &entities.ImageAttachment{Mimetype: "image/jpeg"},
			Mentions: mentions,
		}),
	}
}
