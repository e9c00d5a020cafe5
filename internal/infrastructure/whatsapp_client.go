package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gartenconnect/internal/entities"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// maxNesting bounds how deep wrapped or quoted messages are converted
const maxNesting = 8

var ErrUnsupportedMedia = errors.New("unsupported media reference")

type WhatsAppClient struct {
	Client *whatsmeow.Client

	// OnEvents receives every inbound chat message as a batch
	OnEvents func(batch []entities.InboundEvent)
	// OnLoggedOut fires when the phone unlinks this device
	OnLoggedOut func()

	log    zerolog.Logger
	qrCode string
	qrLock sync.RWMutex
}

// OpenDeviceStore opens the SQLite credential store shared by every client of this process
func OpenDeviceStore(ctx context.Context, dbPath string, log zerolog.Logger) (*sqlstore.Container, error) {
	dbLog := waLog.Zerolog(log.With().Str("module", "whatsmeow-db").Logger())
	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return container, nil
}

func NewWhatsAppClient(ctx context.Context, container *sqlstore.Container, log zerolog.Logger) (*WhatsAppClient, error) {
	// Get the first device (or create one)
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	clientLog := waLog.Zerolog(log.With().Str("module", "whatsmeow").Logger())
	client := whatsmeow.NewClient(deviceStore, clientLog)

	w := &WhatsAppClient{
		Client: client,
		log:    log,
	}
	client.AddEventHandler(w.HandleEvent)
	return w, nil
}

func (w *WhatsAppClient) Connect(ctx context.Context) error {
	if w.Client.Store.ID != nil {
		if err := w.Client.Connect(); err != nil {
			return err
		}
		w.log.Info().Msg("WhatsApp client connected (existing session)")
		return nil
	}

	// No ID stored, new login
	qrChan, err := w.Client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		return err
	}
	go w.watchQR(qrChan)
	return nil
}

func (w *WhatsAppClient) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event != whatsmeow.QRChannelEventCode {
			w.setQR("")
			w.log.Info().Str("event", evt.Event).Msg("login event")
			continue
		}
		w.setQR(evt.Code)
		if q, err := qrcode.New(evt.Code, qrcode.Low); err == nil {
			fmt.Println(q.ToSmallString(false))
		}
		w.log.Info().Msg("scan the QR code to link the bot (also served at /api/whatsapp/qr)")
	}
}

func (w *WhatsAppClient) setQR(code string) {
	w.qrLock.Lock()
	w.qrCode = code
	w.qrLock.Unlock()
}

func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

// IsConnected returns true if client is connected and logged in
func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

// GetUserInfo returns connected user's phone number and push name
func (w *WhatsAppClient) GetUserInfo() (string, string) {
	if w.Client.Store.ID == nil {
		return "", ""
	}
	return w.Client.Store.ID.User, w.Client.Store.PushName
}

// Self returns the bot's own address in both forms used by mentions
func (w *WhatsAppClient) Self() (entities.SelfIdentity, bool) {
	id := w.Client.Store.ID
	if id == nil {
		return entities.SelfIdentity{}, false
	}
	self := entities.SelfIdentity{
		LongID:  id.String(),
		ShortID: id.ToNonAD().String(),
	}
	if lid := w.Client.Store.LID; !lid.IsEmpty() {
		self.LID = lid.ToNonAD().String()
	}
	return self, true
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}

// Send delivers one render unit to chatID
func (w *WhatsAppClient) Send(ctx context.Context, chatID string, unit entities.RenderUnit) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	var msg *waProto.Message
	switch unit.Kind {
	case entities.UnitImage:
		msg, err = w.imageMessage(ctx, unit)
		if err != nil {
			return err
		}
	default:
		msg = &waProto.Message{Conversation: proto.String(unit.Text)}
	}

	_, err = w.Client.SendMessage(ctx, jid, msg)
	return err
}

func (w *WhatsAppClient) imageMessage(ctx context.Context, unit entities.RenderUnit) (*waProto.Message, error) {
	uploaded, err := w.Client.Upload(ctx, unit.Image, whatsmeow.MediaImage)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	mimetype := unit.Mimetype
	if mimetype == "" {
		mimetype = "image/jpeg"
	}
	img := &waProto.ImageMessage{
		URL:           proto.String(uploaded.URL),
		DirectPath:    proto.String(uploaded.DirectPath),
		MediaKey:      uploaded.MediaKey,
		Mimetype:      proto.String(mimetype),
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    proto.Uint64(uploaded.FileLength),
	}
	if unit.Caption != "" {
		img.Caption = proto.String(unit.Caption)
	}
	return &waProto.Message{ImageMessage: img}, nil
}

// SendTyping shows the composing indicator in chatID
func (w *WhatsAppClient) SendTyping(ctx context.Context, chatID string) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return
	}
	_ = w.Client.SendPresence(ctx, types.PresenceAvailable)
	_ = w.Client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

// DownloadImage returns the decrypted bytes of an inbound image
func (w *WhatsAppClient) DownloadImage(ctx context.Context, img *entities.ImageAttachment) ([]byte, error) {
	ref, ok := img.Ref.(*waProto.ImageMessage)
	if !ok || ref == nil {
		return nil, ErrUnsupportedMedia
	}
	return w.Client.Download(ctx, ref)
}

// HandleEvent is registered on the whatsmeow client
func (w *WhatsAppClient) HandleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		if v.Info.IsFromMe || v.Info.Chat == types.StatusBroadcastJID {
			return
		}
		if w.OnEvents != nil {
			w.OnEvents([]entities.InboundEvent{ConvertMessage(v)})
		}
	case *events.Connected:
		w.log.Info().Msg("WhatsApp connected")
	case *events.Disconnected:
		w.log.Warn().Msg("WhatsApp disconnected, waiting for automatic reconnect")
	case *events.LoggedOut:
		w.log.Warn().Str("reason", v.Reason.String()).Msg("WhatsApp session logged out")
		if w.OnLoggedOut != nil {
			go w.OnLoggedOut()
		}
	}
}

// ConvertMessage maps a whatsmeow message event to the transport-neutral event
func ConvertMessage(evt *events.Message) entities.InboundEvent {
	raw := evt.RawMessage
	if raw == nil {
		raw = evt.Message
	}
	return entities.InboundEvent{
		ID:        evt.Info.ID,
		ChatID:    evt.Info.Chat.String(),
		SenderID:  evt.Info.Sender.String(),
		PushName:  evt.Info.PushName,
		Timestamp: evt.Info.Timestamp,
		Envelope:  ConvertEnvelope(raw),
	}
}

// ConvertEnvelope keeps the wrapper structure of msg as a tagged envelope
func ConvertEnvelope(msg *waProto.Message) *entities.Envelope {
	return convertEnvelope(msg, 0)
}

func convertEnvelope(msg *waProto.Message, depth int) *entities.Envelope {
	if msg == nil || depth > maxNesting {
		return nil
	}
	if eph := msg.GetEphemeralMessage(); eph != nil {
		return &entities.Envelope{Kind: entities.EnvelopeEphemeral, Inner: convertEnvelope(eph.GetMessage(), depth+1)}
	}
	if vo := msg.GetViewOnceMessage(); vo != nil {
		return &entities.Envelope{Kind: entities.EnvelopeViewOnce, Inner: convertEnvelope(vo.GetMessage(), depth+1)}
	}
	if vo := msg.GetViewOnceMessageV2(); vo != nil {
		return &entities.Envelope{Kind: entities.EnvelopeViewOnce, Inner: convertEnvelope(vo.GetMessage(), depth+1)}
	}
	return &entities.Envelope{Kind: entities.EnvelopePlain, Content: convertContent(msg, depth)}
}

func convertContent(msg *waProto.Message, depth int) *entities.Content {
	content := &entities.Content{}
	if msg.GetConversation() != "" {
		content.Conversation = proto.String(msg.GetConversation())
	}

	var ctxInfo *waProto.ContextInfo
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		if ext.Text != nil {
			content.ExtendedText = proto.String(ext.GetText())
		}
		ctxInfo = ext.GetContextInfo()
	}
	if img := msg.GetImageMessage(); img != nil {
		content.Image = &entities.ImageAttachment{
			Mimetype: img.GetMimetype(),
			Caption:  img.GetCaption(),
			Ref:      img,
		}
		if ctxInfo == nil {
			ctxInfo = img.GetContextInfo()
		}
	}

	if ctxInfo != nil {
		content.Mentions = ctxInfo.GetMentionedJID()
		if quoted := ctxInfo.GetQuotedMessage(); quoted != nil {
			content.Quoted = convertEnvelope(quoted, depth+1)
		}
	}
	return content
}
