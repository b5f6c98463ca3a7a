package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"skillmap/pkg/metrics"
	embeddednats "skillmap/pkg/services/embedded-nats"
)

type Manager struct {
	workers []Worker
	log     *zap.Logger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewManager builds the background workers on top of a started embedded NATS server.
func NewManager(natsClient *embeddednats.EmbeddedNATS, audit AuditRecorder, poolSize int, log *zap.Logger, m *metrics.Metrics) (*Manager, error) {
	if natsClient.Connection() == nil {
		return nil, fmt.Errorf("NATS connection not initialized")
	}

	js := natsClient.JetStream()
	if js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		workers: []Worker{
			NewAuditWorker(js, audit, poolSize, log, m),
		},
	}, nil
}

func (m *Manager) Start() error {
	for _, worker := range m.workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()

			if err := w.Start(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.log.Error("worker exited", zap.String("worker", w.Name()), zap.Error(err))
			}
			m.log.Info("worker stopped", zap.String("worker", w.Name()))
		}(worker)
	}

	m.log.Info("started workers", zap.Int("count", len(m.workers)))
	return nil
}

// Stop cancels the workers and waits for in-flight messages. The NATS connection belongs
// to the embedded server and is left open.
func (m *Manager) Stop() error {
	m.cancel()

	for _, worker := range m.workers {
		if err := worker.Stop(); err != nil {
			m.log.Warn("error stopping worker", zap.String("worker", worker.Name()), zap.Error(err))
		}
	}

	m.wg.Wait()
	m.log.Info("all workers stopped")
	return nil
}
