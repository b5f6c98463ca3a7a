package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"skillmap/pkg/metrics"
)

// ErrPoisonMessage marks a message that can never be processed. It is terminated instead
// of redelivered.
var ErrPoisonMessage = errors.New("poison message")

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// HandlerFunc processes one message payload. A nil return acks the message.
type HandlerFunc func(ctx context.Context, msg *nats.Msg) error

type BaseWorker struct {
	name     string
	js       nats.JetStreamContext
	sub      *nats.Subscription
	consumer string
	stream   string
	subject  string
	batch    int
	poolSize int
	log      *zap.Logger
	metrics  *metrics.Metrics
	mu       sync.Mutex
}

func NewBaseWorker(name string, js nats.JetStreamContext, stream, consumer, subject string, poolSize int, log *zap.Logger, m *metrics.Metrics) *BaseWorker {
	if poolSize <= 0 {
		poolSize = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BaseWorker{
		name:     name,
		js:       js,
		consumer: consumer,
		stream:   stream,
		subject:  subject,
		batch:    10,
		poolSize: poolSize,
		log:      log.With(zap.String("worker", name)),
		metrics:  m,
	}
}

func (w *BaseWorker) Name() string {
	return w.name
}

func (w *BaseWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		return w.sub.Drain()
	}
	return nil
}

// processMessages pulls batches from the bound durable consumer and fans each message
// out to an ants pool. It returns when ctx is cancelled.
func (w *BaseWorker) processMessages(ctx context.Context, handler HandlerFunc) error {
	sub, err := w.js.PullSubscribe(w.subject, w.consumer,
		nats.ManualAck(),
		nats.Bind(w.stream, w.consumer),
	)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()

	pool, err := ants.NewPool(w.poolSize, ants.WithPanicHandler(func(p interface{}) {
		w.log.Error("handler panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return err
	}
	defer pool.Release()

	w.log.Info("worker started", zap.String("stream", w.stream), zap.String("consumer", w.consumer), zap.Int("pool", w.poolSize))

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		if ctx.Err() != nil {
			w.log.Info("worker stopping")
			return ctx.Err()
		}

		msgs, err := sub.Fetch(w.batch, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
				return ctx.Err()
			}
			w.log.Warn("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			msg := msg
			inflight.Add(1)
			submitErr := pool.Submit(func() {
				defer inflight.Done()
				w.handle(ctx, msg, handler)
			})
			if submitErr != nil {
				inflight.Done()
				w.log.Warn("pool rejected message", zap.Error(submitErr))
				_ = msg.Nak()
			}
		}
	}
}

func (w *BaseWorker) handle(ctx context.Context, msg *nats.Msg, handler HandlerFunc) {
	err := handler(ctx, msg)
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			w.log.Warn("failed to ack message", zap.String("subject", msg.Subject), zap.Error(ackErr))
		}
		w.metrics.RecordEventProcessed(w.name, "ok")
	case errors.Is(err, ErrPoisonMessage):
		w.log.Error("dropping message", zap.String("subject", msg.Subject), zap.Error(err))
		_ = msg.Term()
		w.metrics.RecordEventProcessed(w.name, "dropped")
	default:
		w.log.Warn("message failed, requesting redelivery", zap.String("subject", msg.Subject), zap.Error(err))
		_ = msg.NakWithDelay(time.Second)
		w.metrics.RecordEventProcessed(w.name, "retry")
	}
}
