// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package events

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/clock"
	"gopkg.in/errgo.v1"
	"gopkg.in/tomb.v2"

	"github.com/release-engineering/waiverdb/internal/monitoring"
	"github.com/release-engineering/waiverdb/params"
)

const (
	defaultQueueSize     = 1000
	defaultMaxAttempts   = 3
	defaultRetryInterval = 5 * time.Second
)

// DispatcherParams holds the parameters for a Dispatcher.
type DispatcherParams struct {
	// Publisher is used to send the messages.
	Publisher Publisher

	// TopicPrefix is prepended to the topic of every message.
	TopicPrefix string

	// QueueSize holds the maximum number of messages waiting to be
	// sent. Messages queued when the queue is full are dropped.
	QueueSize int

	// MaxAttempts holds the number of times sending a message is
	// attempted before it is dropped.
	MaxAttempts int

	// RetryInterval holds the time to wait before the first retry.
	// Subsequent retries wait exponentially longer.
	RetryInterval time.Duration

	// Clock is used for timestamps and retry delays. If it is nil,
	// the wall clock is used.
	Clock clock.Clock
}

// A Dispatcher sends messages in the background so that request
// handlers never wait for the message bus.
type Dispatcher struct {
	tomb    tomb.Tomb
	ctx     context.Context
	cancel  context.CancelFunc
	params  DispatcherParams
	queue   chan *Message
	metrics *monitoring.MessagingMetrics
}

// NewDispatcher starts a new Dispatcher. It must be closed after use.
func NewDispatcher(p DispatcherParams) *Dispatcher {
	if p.QueueSize <= 0 {
		p.QueueSize = defaultQueueSize
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.RetryInterval <= 0 {
		p.RetryInterval = defaultRetryInterval
	}
	if p.Clock == nil {
		p.Clock = clock.WallClock
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		ctx:     ctx,
		cancel:  cancel,
		params:  p,
		queue:   make(chan *Message, p.QueueSize),
		metrics: monitoring.Messaging(),
	}
	d.tomb.Go(d.run)
	return d
}

// WaiversCreated queues a new waiver message for each of the given
// waivers. It does not block. It is a no-op on a nil Dispatcher.
func (d *Dispatcher) WaiversCreated(ws []params.Waiver) {
	if d == nil {
		return
	}
	for i := range ws {
		d.metrics.ToSend()
		m, err := NewMessage(d.params.TopicPrefix+TopicNewWaiver, ws[i], d.params.Clock.Now())
		if err != nil {
			logger.Errorf("cannot create message for waiver %d: %s", ws[i].ID, err)
			d.metrics.Failed()
			continue
		}
		select {
		case d.queue <- m:
		default:
			logger.Warningf("message queue full, dropping message for waiver %d", ws[i].ID)
			d.metrics.Stopped()
		}
	}
}

// Close stops the dispatcher and closes its publisher. Messages still
// queued are dropped.
func (d *Dispatcher) Close() error {
	d.tomb.Kill(nil)
	d.cancel()
	err := d.tomb.Wait()
	if cerr := d.params.Publisher.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return errgo.Mask(err)
}

func (d *Dispatcher) run() error {
	for {
		select {
		case <-d.tomb.Dying():
			d.drain()
			return nil
		case m := <-d.queue:
			d.send(m)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case m := <-d.queue:
			logger.Warningf("dispatcher stopping, dropping message %s", m.ID)
			d.metrics.Stopped()
		default:
			return
		}
	}
}

// send publishes m, retrying on failure.
func (d *Dispatcher) send(m *Message) {
	ctx := d.ctx
	attempt := 0
	op := func() error {
		attempt++
		err := d.params.Publisher.Publish(ctx, m)
		if err == nil {
			return nil
		}
		if errgo.Cause(err) == ErrDisabled {
			return backoff.Permanent(err)
		}
		logger.Errorf("cannot send message %s (attempt %d/%d): %s", m.ID, attempt, d.params.MaxAttempts, err)
		d.metrics.Failed()
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.params.RetryInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Clock = d.params.Clock
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.params.MaxAttempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(op, bo, nil, &clockTimer{clock: d.params.Clock})
	switch {
	case err == nil:
		d.metrics.SentOK()
	case errgo.Cause(err) == ErrDisabled:
		logger.Debugf("no message published for %s: %s", m.Topic, err)
		d.metrics.Stopped()
	default:
		logger.Errorf("giving up on message %s: %s", m.ID, err)
	}
}

// clockTimer implements backoff.Timer using a clock.Clock.
type clockTimer struct {
	clock clock.Clock
	timer clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}
