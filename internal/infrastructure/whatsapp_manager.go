package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gartenconnect/internal/entities"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/store/sqlstore"
)

// ErrNotConnected is returned while no WhatsApp client is attached
var ErrNotConnected = errors.New("whatsapp client not connected")

// WhatsAppSession owns the live WhatsApp client. The client is swapped
// atomically when the device is re-linked, so callers always reach the
// current connection through the session.
type WhatsAppSession struct {
	current   atomic.Pointer[WhatsAppClient]
	container *sqlstore.Container
	log       zerolog.Logger
	restartMu sync.Mutex

	// Callback for every inbound message batch of whichever client is current
	OnEvents func(batch []entities.InboundEvent)
}

// NewWhatsAppSession opens the device store at dbPath
func NewWhatsAppSession(ctx context.Context, dbPath string, log zerolog.Logger) (*WhatsAppSession, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}
	container, err := OpenDeviceStore(ctx, dbPath, log)
	if err != nil {
		return nil, err
	}
	return &WhatsAppSession{container: container, log: log}, nil
}

// Start creates a client for the stored device (or a fresh one) and connects it
func (s *WhatsAppSession) Start(ctx context.Context) error {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	client, err := NewWhatsAppClient(ctx, s.container, s.log)
	if err != nil {
		return err
	}
	client.OnEvents = s.dispatch
	client.OnLoggedOut = s.relink

	s.Replace(client)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect WhatsApp: %w", err)
	}
	return nil
}

func (s *WhatsAppSession) dispatch(batch []entities.InboundEvent) {
	if s.OnEvents != nil {
		s.OnEvents(batch)
	}
}

// relink starts a new pairing after the phone removed this device
func (s *WhatsAppSession) relink() {
	s.log.Info().Msg("starting new WhatsApp pairing")
	if err := s.Start(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("failed to restart WhatsApp pairing")
	}
}

// Replace installs client as the current connection and disconnects the previous one
func (s *WhatsAppSession) Replace(client *WhatsAppClient) {
	old := s.current.Swap(client)
	if old != nil && old != client {
		old.Disconnect()
	}
}

// Current returns the attached client, nil before Start
func (s *WhatsAppSession) Current() *WhatsAppClient {
	return s.current.Load()
}

func (s *WhatsAppSession) Send(ctx context.Context, chatID string, unit entities.RenderUnit) error {
	client := s.Current()
	if client == nil {
		return ErrNotConnected
	}
	return client.Send(ctx, chatID, unit)
}

func (s *WhatsAppSession) DownloadImage(ctx context.Context, img *entities.ImageAttachment) ([]byte, error) {
	client := s.Current()
	if client == nil {
		return nil, ErrNotConnected
	}
	return client.DownloadImage(ctx, img)
}

func (s *WhatsAppSession) Self() (entities.SelfIdentity, bool) {
	client := s.Current()
	if client == nil {
		return entities.SelfIdentity{}, false
	}
	return client.Self()
}

func (s *WhatsAppSession) SendTyping(ctx context.Context, chatID string) {
	if client := s.Current(); client != nil {
		client.SendTyping(ctx, chatID)
	}
}

// Status reports the pairing state for the REST surface
func (s *WhatsAppSession) Status() map[string]interface{} {
	client := s.Current()
	if client == nil {
		return map[string]interface{}{"connected": false, "logged_in": false}
	}
	phone, name := client.GetUserInfo()
	return map[string]interface{}{
		"connected":  client.IsConnected(),
		"logged_in":  client.IsLoggedIn(),
		"phone":      phone,
		"push_name":  name,
		"qr_pending": client.GetQR() != "",
	}
}

// QR returns the pending pairing code, empty when already linked
func (s *WhatsAppSession) QR() string {
	if client := s.Current(); client != nil {
		return client.GetQR()
	}
	return ""
}

// Close disconnects the current client (for graceful shutdown)
func (s *WhatsAppSession) Close() {
	if client := s.current.Swap(nil); client != nil {
		client.Disconnect()
	}
}
