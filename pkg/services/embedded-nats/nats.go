package embeddednats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"skillmap/pkg/config"
	"skillmap/pkg/shared"
)

type Config struct {
	// Port -1 picks a random free port.
	Port            int
	DataDir         string
	MaxMemory       int64
	MaxFileStore    int64
	JetStreamDomain string
	ConnectTimeout  time.Duration
}

type EmbeddedNATS struct {
	server  *server.Server
	nc      *nats.Conn
	js      nats.JetStreamContext
	config  *Config
	log     *zap.Logger
	streams map[string]*StreamConfig
}

type StreamConfig struct {
	Name            string
	Subjects        []string
	Retention       nats.RetentionPolicy
	MaxMsgs         int64
	MaxBytes        int64
	MaxAge          time.Duration
	MaxMsgSize      int32
	Replicas        int
	DuplicateWindow time.Duration
	DiscardPolicy   nats.DiscardPolicy
}

func DefaultConfig() *Config {
	return &Config{
		Port:            4222,
		DataDir:         "./data/nats",
		MaxMemory:       64 * 1024 * 1024,  // 64MB
		MaxFileStore:    512 * 1024 * 1024, // 512MB
		JetStreamDomain: "skillmap",
		ConnectTimeout:  10 * time.Second,
	}
}

// FromConfig maps the application NATS section onto the server defaults.
func FromConfig(c config.NATSConfig) *Config {
	cfg := DefaultConfig()
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.DataDir != "" {
		cfg.DataDir = c.DataDir
	}
	return cfg
}

func New(cfg *Config, log *zap.Logger) (*EmbeddedNATS, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DataDir == "" {
		return nil, errors.New("nats data dir is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &EmbeddedNATS{
		config:  cfg,
		log:     log,
		streams: make(map[string]*StreamConfig),
	}, nil
}

func (en *EmbeddedNATS) Start(ctx context.Context) error {
	opts := &server.Options{
		ServerName:         "skillmap",
		Host:               "127.0.0.1",
		Port:               en.config.Port,
		JetStream:          true,
		StoreDir:           en.config.DataDir,
		JetStreamMaxMemory: en.config.MaxMemory,
		JetStreamMaxStore:  en.config.MaxFileStore,
		JetStreamDomain:    en.config.JetStreamDomain,
		NoSigs:             true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(en.config.ConnectTimeout) {
		ns.Shutdown()
		return fmt.Errorf("NATS server not ready for connections")
	}

	en.server = ns

	if err := en.connect(ctx); err != nil {
		ns.Shutdown()
		return fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	en.log.Info("embedded NATS server started", zap.String("url", ns.ClientURL()))
	return nil
}

func (en *EmbeddedNATS) connect(ctx context.Context) error {
	url := en.server.ClientURL()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = en.config.ConnectTimeout

	var nc *nats.Conn
	err := backoff.RetryNotify(func() error {
		var err error
		nc, err = nats.Connect(url,
			nats.Name("skillmap"),
			nats.ReconnectWait(2*time.Second),
			nats.MaxReconnects(-1),
			nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
				en.log.Error("NATS error", zap.Error(err))
			}),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					en.log.Warn("NATS disconnected", zap.Error(err))
				}
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				en.log.Info("NATS reconnected")
			}),
		)
		return err
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		en.log.Warn("NATS connect failed, retrying", zap.Error(err), zap.Duration("next", next))
	})
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	en.nc = nc
	en.js = js
	return nil
}

func (en *EmbeddedNATS) AddStream(streamConfig *StreamConfig) error {
	if en.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}

	cfg := &nats.StreamConfig{
		Name:       streamConfig.Name,
		Subjects:   streamConfig.Subjects,
		Retention:  streamConfig.Retention,
		MaxMsgs:    streamConfig.MaxMsgs,
		MaxBytes:   streamConfig.MaxBytes,
		MaxAge:     streamConfig.MaxAge,
		MaxMsgSize: streamConfig.MaxMsgSize,
		Replicas:   streamConfig.Replicas,
		Duplicates: streamConfig.DuplicateWindow,
		Discard:    streamConfig.DiscardPolicy,
		Storage:    nats.FileStorage,
	}

	var (
		info *nats.StreamInfo
		err  error
	)
	if _, lookupErr := en.js.StreamInfo(streamConfig.Name); lookupErr == nil {
		info, err = en.js.UpdateStream(cfg)
		if err != nil {
			return fmt.Errorf("failed to update stream %s: %w", streamConfig.Name, err)
		}
	} else {
		info, err = en.js.AddStream(cfg)
		if err != nil {
			return fmt.Errorf("failed to add stream %s: %w", streamConfig.Name, err)
		}
	}

	en.streams[streamConfig.Name] = streamConfig
	en.log.Info("stream ready", zap.String("stream", info.Config.Name), zap.Strings("subjects", info.Config.Subjects))
	return nil
}

// CreateSkillMapStreams declares the event stream and the durable audit consumer.
func (en *EmbeddedNATS) CreateSkillMapStreams() error {
	events := StreamConfig{
		Name:            shared.StreamEvents,
		Subjects:        []string{shared.SubjectEventsAll},
		Retention:       nats.LimitsPolicy,
		MaxMsgs:         100000,
		MaxBytes:        128 * 1024 * 1024, // 128MB
		MaxAge:          30 * 24 * time.Hour,
		MaxMsgSize:      256 * 1024, // 256KB
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		DiscardPolicy:   nats.DiscardOld,
	}
	if err := en.AddStream(&events); err != nil {
		return err
	}

	return en.CreateDurableConsumer(shared.StreamEvents, shared.ConsumerAuditProcessor, shared.SubjectEventsAll)
}

// PublishWithDedup publishes to JetStream with a Nats-Msg-Id header so replays inside the
// stream's duplicate window are dropped by the server.
func (en *EmbeddedNATS) PublishWithDedup(subject string, data []byte, msgID string) error {
	if en.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, msgID)

	if _, err := en.js.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (en *EmbeddedNATS) CreateDurableConsumer(streamName, consumerName, filterSubject string) error {
	if _, err := en.js.ConsumerInfo(streamName, consumerName); err == nil {
		en.log.Debug("durable consumer exists", zap.String("consumer", consumerName), zap.String("stream", streamName))
		return nil
	}

	_, err := en.js.AddConsumer(streamName, &nats.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: filterSubject,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		MaxAckPending: 1000,
		DeliverPolicy: nats.DeliverAllPolicy,
		ReplayPolicy:  nats.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", consumerName, err)
	}

	en.log.Info("created durable consumer", zap.String("consumer", consumerName), zap.String("stream", streamName))
	return nil
}

func (en *EmbeddedNATS) Connection() *nats.Conn {
	return en.nc
}

func (en *EmbeddedNATS) JetStream() nats.JetStreamContext {
	return en.js
}

func (en *EmbeddedNATS) Shutdown(ctx context.Context) error {
	if en.nc != nil {
		if err := en.nc.Drain(); err != nil {
			en.nc.Close()
		}
	}

	if en.server == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		en.server.Shutdown()
		en.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		en.log.Info("embedded NATS server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (en *EmbeddedNATS) HealthCheck() error {
	if en.nc == nil {
		return fmt.Errorf("NATS connection not initialized")
	}

	if !en.nc.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}

	if en.server != nil && !en.server.Running() {
		return fmt.Errorf("NATS server not running")
	}

	return nil
}
