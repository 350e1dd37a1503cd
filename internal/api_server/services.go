package apiserver

import (
	"fmt"

	"github.com/paperlane/paperlane/internal/config"
	"github.com/paperlane/paperlane/internal/engine"
	"github.com/paperlane/paperlane/internal/events"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/paperlane/paperlane/pkg/storage"
	"go.uber.org/zap"
)

// Services holds the domain services shared by the api server and the reconciler.
type Services struct {
	Dispatch  *service.DispatchService
	Reconcile *service.ReconcileService
	Accounts  *service.AccountService
	producer  *events.EventProducer
}

type ServicesOption func(o *servicesOptions)

type servicesOptions struct {
	engine engine.Client
	files  storage.Reader
}

// WithEngineClient replaces the HTTP engine client built from the configuration.
func WithEngineClient(c engine.Client) ServicesOption {
	return func(o *servicesOptions) {
		o.engine = c
	}
}

// WithFileReader replaces the document storage built from the configuration.
func WithFileReader(r storage.Reader) ServicesOption {
	return func(o *servicesOptions) {
		o.files = r
	}
}

func NewServices(cfg *config.Config, s store.Store, opts ...ServicesOption) (*Services, error) {
	o := &servicesOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.engine == nil {
		o.engine = engine.NewHTTPClient(cfg.Service.Engine.URL, cfg.Service.Engine.APIKey, cfg.Service.Engine.Timeout)
	}

	if o.files == nil {
		files, err := newFileReader(cfg.Service.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create document storage: %w", err)
		}
		o.files = files
	}

	writer, err := events.NewWriter(cfg.Service.Events.SinkURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create event writer: %w", err)
	}
	producer := events.NewEventProducer(writer,
		events.WithOutputTopic(cfg.Service.Events.Topic),
		events.WithBufferSize(cfg.Service.Events.BufferSize),
	)

	recorder := service.NewActivityRecorder(s, producer)

	zap.S().Named("api_server").Infow("services initialized",
		"engine", cfg.Service.Engine.URL,
		"storage", o.files.Type(),
		"events_sink", cfg.Service.Events.SinkURL,
	)

	return &Services{
		Dispatch:  service.NewDispatchService(s, o.engine, o.files, recorder),
		Reconcile: service.NewReconcileService(s, o.engine, recorder),
		Accounts:  service.NewAccountService(s, recorder),
		producer:  producer,
	}, nil
}

// Close flushes the pending activity events.
func (s *Services) Close() error {
	return s.producer.Close()
}

func newFileReader(cfg config.Storage) (storage.Reader, error) {
	switch cfg.Type {
	case "minio", "s3":
		return storage.NewMinioReader(
			storage.WithEndpoint(cfg.Endpoint),
			storage.WithBucket(cfg.Bucket),
			storage.WithAccessKey(cfg.AccessKey),
			storage.WithSecretKey(cfg.SecretKey),
			storage.WithSSL(cfg.UseSSL),
		)
	case "local", "":
		return storage.NewLocalReader(cfg.LocalRoot), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
