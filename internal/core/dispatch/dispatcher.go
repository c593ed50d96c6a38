// Package dispatch delivers outbound chat messages off the request path.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
)

var ErrStopped = errors.New("dispatcher stopped")

// Message is one outbound chat message.
type Message struct {
	ID      string
	ChatID  string
	Text    string
	Options []string
}

// Config bounds the queue and the per-send deadline.
//
// QueueSize:    buffered jobs before Enqueue blocks.
// SendTimeout:  deadline for one SendMessage call.
// MaxAttempts:  sends per message before it is dropped.
// DrainTimeout: how long Stop keeps delivering already queued messages.
type Config struct {
	QueueSize    int
	SendTimeout  time.Duration
	MaxAttempts  int
	DrainTimeout time.Duration
}

type Dispatcher struct {
	sender core.MessageSender
	log    *logger.Logger
	cfg    Config

	jobs   chan Message
	wg     sync.WaitGroup
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDispatcher constructs the dispatcher with a bounded job queue.
func NewDispatcher(sender core.MessageSender, log *logger.Logger, cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	return &Dispatcher{
		sender: sender,
		log:    log.With("service", "Dispatcher"),
		cfg:    cfg,
		jobs:   make(chan Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel until ctx
// ends or Stop has drained the queue.
// Messages for one chat may be delivered out of order when numWorkers > 1.
func (d *Dispatcher) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	for w := 0; w < numWorkers; w++ {
		d.wg.Add(1)
		go func(worker int) {
			defer d.wg.Done()
			for {
				if runCtx.Err() != nil {
					return
				}
				select {
				case <-runCtx.Done():
					return
				case <-d.done:
					d.drain(runCtx, worker)
					return
				case msg := <-d.jobs:
					d.deliver(runCtx, worker, msg)
				}
			}
		}(w)
	}
	d.log.Info("dispatcher started", "workers", numWorkers, "queue", d.cfg.QueueSize)
}

// Enqueue schedules a message. If the queue is full it blocks until space
// frees up or ctx ends.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case d.jobs <- msg:
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop prevents new jobs, lets the workers deliver what is already queued
// for up to DrainTimeout, and returns the number of messages left undelivered.
func (d *Dispatcher) Stop() int {
	d.once.Do(func() { close(d.done) })

	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		timer := time.AfterFunc(d.cfg.DrainTimeout, cancel)
		d.wg.Wait()
		timer.Stop()
		cancel()
	}

	dropped := len(d.jobs)
	if dropped > 0 {
		d.log.Warn("messages dropped at shutdown", "count", dropped)
	}
	return dropped
}

// drain delivers queued messages until the queue is empty or ctx ends.
func (d *Dispatcher) drain(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		select {
		case msg := <-d.jobs:
			d.deliver(ctx, worker, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, msg Message) {
	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err = d.sender.SendMessage(sendCtx, msg.ChatID, msg.Text, msg.Options)
		cancel()
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			break
		}
		d.log.Debug("send failed", "worker", worker, "message_id", msg.ID, "attempt", attempt, "error", err)
	}
	d.log.Error("message dropped", "message_id", msg.ID, "chat_id", msg.ChatID, "error", err)
}
