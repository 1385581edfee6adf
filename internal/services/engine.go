package services

import (
	"context"
	"errors"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

const eventQueueSize = 64

// SyncEngine drives the whole pipeline: raw events in, classified
// notifications plus executed side effects out. A single consumer
// goroutine drains the queue, so the effects of one event are fully
// applied before the next event begins.
type SyncEngine struct {
	classifier *Classifier
	alerts     *AlertManager
	dispatcher *CacheDispatcher
	store      *NotificationStore
	notifier   domain.NotificationProvider
	log        logger.Logger

	events chan domain.RawEvent
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSyncEngine(
	classifier *Classifier,
	alerts *AlertManager,
	dispatcher *CacheDispatcher,
	store *NotificationStore,
	notifier domain.NotificationProvider,
	log logger.Logger,
) *SyncEngine {
	return &SyncEngine{
		classifier: classifier,
		alerts:     alerts,
		dispatcher: dispatcher,
		store:      store,
		notifier:   notifier,
		log:        log,
		events:     make(chan domain.RawEvent, eventQueueSize),
		done:       make(chan struct{}),
	}
}

func (e *SyncEngine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.run(ctx)
}

// Stop drains nothing: it halts the loop, then stops every alert so no
// sound outlives the session.
func (e *SyncEngine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.alerts.StopAll()
}

// HandleEvent enqueues a raw event for processing. Events are processed
// strictly in enqueue order. The queue never blocks the transport's
// read loop; overflow is dropped and logged (delivery is not guaranteed
// across disconnects anyway).
func (e *SyncEngine) HandleEvent(event domain.RawEvent) {
	select {
	case e.events <- event:
	default:
		e.log.Warn("Event queue full, dropping event", "event", event.Event)
	}
}

func (e *SyncEngine) run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case event := <-e.events:
			e.process(ctx, event)
		case <-ctx.Done():
			return
		}
	}
}

func (e *SyncEngine) process(ctx context.Context, event domain.RawEvent) {
	classified, err := e.classifier.Classify(event)
	if err != nil {
		if errors.Is(err, errEventNotRelevant) {
			e.log.Debug("Skipping event", "event", event.Event, "reason", err)
		} else {
			e.log.Warn("Dropping unclassifiable event", "event", event.Event, "error", err)
		}
		return
	}

	for _, effect := range classified.Effects {
		switch effect.Kind {
		case domain.EffectAlertStart:
			e.alerts.Start(effect.OrderID)
		case domain.EffectAlertStop:
			e.alerts.Stop(effect.OrderID)
		}
	}

	e.dispatcher.Apply(ctx, classified.Effects)
	e.store.Add(classified.Notification)

	if e.notifier != nil && e.notifier.Enabled() {
		if err := e.notifier.Send(ctx, classified.Notification); err != nil {
			e.log.Debug("System notification delivery failed",
				"provider", e.notifier.Name(), "error", err)
		}
	}
}
