// Package pipeline consumes chat messages and dispatches their emote batches.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/john/emoterain/internal/emote"
	"github.com/john/emoterain/internal/message"
	"github.com/john/emoterain/internal/metrics"
)

// Resolver turns a message into a batch.
type Resolver interface {
	Resolve(msg message.Message) (emote.Batch, bool)
}

// Dispatcher delivers a batch to listeners.
type Dispatcher interface {
	Dispatch(batch emote.Batch) int
}

// Pipeline processes messages one at a time, in arrival order.
type Pipeline struct {
	resolver   Resolver
	dispatcher Dispatcher
	onBatch    func()
	logger     *slog.Logger
}

// New creates a pipeline. onBatch, if set, runs after each dispatch.
func New(resolver Resolver, dispatcher Dispatcher, onBatch func(), logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		resolver:   resolver,
		dispatcher: dispatcher,
		onBatch:    onBatch,
		logger:     logger,
	}
}

// Start reads messageChan until ctx is cancelled or the channel closes.
func (p *Pipeline) Start(ctx context.Context, messageChan <-chan message.Message) error {
	for {
		select {
		case msg, ok := <-messageChan:
			if !ok {
				p.logger.Info("message channel closed, pipeline stopping")
				return nil
			}
			p.Handle(msg)

		case <-ctx.Done():
			p.logger.Info("pipeline shutting down")
			return ctx.Err()
		}
	}
}

// Handle resolves and dispatches a single message.
func (p *Pipeline) Handle(msg message.Message) {
	metrics.MessagesProcessed.WithLabelValues(msg.Platform).Inc()

	batch, ok := p.resolver.Resolve(msg)
	if !ok {
		return
	}

	failed := p.dispatcher.Dispatch(batch)
	metrics.BatchesDispatched.WithLabelValues(msg.Platform).Inc()
	metrics.EmotesDispatched.Add(float64(len(batch.Emotes)))
	if p.onBatch != nil {
		p.onBatch()
	}

	p.logger.Debug("dispatched emote batch",
		"platform", msg.Platform,
		"channel", msg.Channel,
		"emotes", len(batch.Emotes),
		"failed_listeners", failed,
	)
}
