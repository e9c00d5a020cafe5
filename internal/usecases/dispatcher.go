package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gartenconnect/internal/entities"
	"gartenconnect/internal/interfaces"
	"gartenconnect/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	GenericApology = FallbackReply
	ImageApology   = "⚠️ No pude procesar tu imagen, lo siento."

	queueSize = 64
)

// Pipeline stages, used for logs and metrics
const (
	StageDedup     = "dedup"
	StageUnwrap    = "unwrap"
	StageGate      = "gate"
	StageNormalize = "normalize"
	StageIngest    = "ingest"
	StageClassify  = "classify"
	StageInterpret = "interpret"
	StageRender    = "render"
	StageSend      = "send"
)

// ChatLocker serializes work per chat
type ChatLocker interface {
	Lock(chatID string) (unlock func())
}

// ChatLimiter throttles inbound events per chat
type ChatLimiter interface {
	Allow(chatID string) bool
}

// Dispatcher runs every inbound event through the pipeline and sends the result.
// One event failing never affects another.
type Dispatcher struct {
	transport  interfaces.Transport
	classifier interfaces.Classifier
	ingester   *MediaIngester
	renderer   *GalleryRenderer
	gate       *MentionGate
	log        zerolog.Logger

	// Optional collaborators
	Dedup   interfaces.Deduplicator
	Usage   interfaces.UsageRecorder
	Limiter ChatLimiter
	Locks   ChatLocker

	queue   chan []entities.InboundEvent
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
	senders sync.WaitGroup
	wg      sync.WaitGroup
}

func NewDispatcher(transport interfaces.Transport, classifier interfaces.Classifier, ingester *MediaIngester, renderer *GalleryRenderer, gate *MentionGate, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		transport:  transport,
		classifier: classifier,
		ingester:   ingester,
		renderer:   renderer,
		gate:       gate,
		log:        log,
		queue:      make(chan []entities.InboundEvent, queueSize),
		done:       make(chan struct{}),
	}
}

// Enqueue hands a batch to the dispatch loop. Returns false once the loop has
// stopped. A batch accepted here is always processed, even during shutdown.
func (d *Dispatcher) Enqueue(batch []entities.InboundEvent) bool {
	if len(batch) == 0 {
		return true
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	d.senders.Add(1)
	d.mu.Unlock()
	defer d.senders.Done()

	select {
	case d.queue <- batch:
		return true
	case <-d.done:
		return false
	}
}

// Run consumes queued batches until ctx is cancelled, then processes what is
// still queued and waits for every started event to finish.
func (d *Dispatcher) Run(ctx context.Context) {
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			d.stop()
			d.drain(work)
			d.wg.Wait()
			return
		case batch := <-d.queue:
			d.start(work, batch)
		}
	}
}

func (d *Dispatcher) stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.done)
	}
	d.mu.Unlock()
	// in-flight Enqueue calls have either queued their batch or given up
	d.senders.Wait()
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case batch := <-d.queue:
			d.log.Info().Int("events", len(batch)).Msg("processing queued batch before shutdown")
			d.start(ctx, batch)
		default:
			return
		}
	}
}

func (d *Dispatcher) start(ctx context.Context, batch []entities.InboundEvent) {
	for _, evt := range batch {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handleSerialized(ctx, evt)
		}()
	}
}

func (d *Dispatcher) handleSerialized(ctx context.Context, evt entities.InboundEvent) {
	if d.Locks != nil {
		unlock := d.Locks.Lock(evt.ChatID)
		defer unlock()
	}
	d.Handle(ctx, evt)
}

// Handle processes a single event end to end. Failures at any stage, panics
// included, end in one apology message to the originating chat.
func (d *Dispatcher) Handle(ctx context.Context, evt entities.InboundEvent) {
	log := d.log.With().Str("chat", evt.ChatID).Str("event", evt.ID).Logger()
	stage := StageDedup

	defer func() {
		if rec := recover(); rec != nil {
			d.fail(ctx, log, evt.ChatID, stage, fmt.Errorf("panic: %v", rec))
		}
	}()

	outcome, err := d.process(ctx, evt, &stage, log)
	if err != nil {
		d.fail(ctx, log, evt.ChatID, stage, err)
		return
	}
	metrics.InboundEvents.WithLabelValues(outcome).Inc()
}

func (d *Dispatcher) process(ctx context.Context, evt entities.InboundEvent, stage *string, log zerolog.Logger) (string, error) {
	if d.Dedup != nil && evt.ID != "" {
		first, err := d.Dedup.FirstSeen(ctx, evt.ID)
		if err != nil {
			log.Warn().Err(err).Msg("dedup lookup failed, processing anyway")
		} else if !first {
			log.Debug().Msg("duplicate event ignored")
			return "duplicate", nil
		}
	}

	*stage = StageUnwrap
	content := Unwrap(evt.Envelope)
	var mentions []string
	if content != nil {
		mentions = content.Mentions
	}

	*stage = StageGate
	if !d.gate.Allow(evt.ChatID, mentions) {
		return "gated", nil
	}
	if d.Limiter != nil && !d.Limiter.Allow(evt.ChatID) {
		log.Warn().Msg("chat rate limit exceeded, event dropped")
		return "throttled", nil
	}
	if d.Usage != nil {
		if err := d.Usage.IncrementReceived(ctx, evt.ChatID); err != nil {
			log.Warn().Err(err).Msg("usage record failed")
		}
	}

	*stage = StageNormalize
	msg := Normalize(evt, content)
	req := entities.ClassifierRequest{UID: evt.ChatID, Timestamp: evt.Timestamp.Unix()}

	if msg.Kind == entities.MessageImage {
		log.Info().Msg("image received")
		*stage = StageIngest
		url, err := d.ingester.Ingest(ctx, msg, evt.ID)
		if err != nil {
			metrics.MediaUploads.WithLabelValues("error").Inc()
			return "", err
		}
		metrics.MediaUploads.WithLabelValues("ok").Inc()
		log.Info().Str("url", url).Msg("image stored")
		msg.MediaURL = url
		req.ImageURL = &url
	} else {
		body := msg.Body
		log.Info().Str("body", body).Msg("message received")
		req.Message = &body
	}

	if p, ok := d.transport.(interfaces.Presence); ok {
		p.SendTyping(ctx, evt.ChatID)
	}

	*stage = StageClassify
	reply := d.classifier.Process(ctx, req)

	*stage = StageInterpret
	resp := Interpret(reply)

	*stage = StageRender
	units := d.renderer.Render(ctx, resp)

	*stage = StageSend
	d.sendAll(ctx, log, evt.ChatID, units)
	return "replied", nil
}

func (d *Dispatcher) fail(ctx context.Context, log zerolog.Logger, chatID, stage string, err error) {
	metrics.StageFailures.WithLabelValues(stage).Inc()
	metrics.InboundEvents.WithLabelValues("failed").Inc()
	log.Error().Err(err).Str("stage", stage).Msg("event processing failed")

	apology := GenericApology
	var storageErr *entities.StorageError
	if errors.As(err, &storageErr) {
		apology = ImageApology
	}
	d.sendAll(ctx, log, chatID, []entities.RenderUnit{entities.TextUnit(apology)})
}

// sendAll sends units in order. Failed sends are logged and not retried.
func (d *Dispatcher) sendAll(ctx context.Context, log zerolog.Logger, chatID string, units []entities.RenderUnit) {
	sent := 0
	for i, unit := range units {
		if err := d.safeSend(ctx, chatID, unit); err != nil {
			metrics.SendFailures.Inc()
			log.Error().Err(err).Int("unit", i).Str("kind", string(unit.Kind)).Msg("send failed")
			continue
		}
		metrics.RenderUnits.WithLabelValues(string(unit.Kind)).Inc()
		sent++
	}
	if d.Usage != nil && sent > 0 {
		if err := d.Usage.IncrementSent(ctx, chatID, sent); err != nil {
			log.Warn().Err(err).Msg("usage record failed")
		}
	}
}

func (d *Dispatcher) safeSend(ctx context.Context, chatID string, unit entities.RenderUnit) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("send panic: %v", rec)
		}
	}()
	return d.transport.Send(ctx, chatID, unit)
}
