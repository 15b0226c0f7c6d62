package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"feedrelay/internal/adapter/digest"
	"feedrelay/internal/adapter/fetcher"
	"feedrelay/internal/adapter/parser"
	"feedrelay/internal/config"
	"feedrelay/internal/domain"
	"feedrelay/internal/logger"
	"feedrelay/internal/publisher"
	"feedrelay/internal/summarizer"
	server "feedrelay/internal/transport/http"
	"feedrelay/internal/usecase"
	"feedrelay/internal/worker"
	"feedrelay/storage"
)

// AllSources - значение для RunOnce, запускающее все источники.
const AllSources = "all"

// App координирует работу всех компонентов: планировщика источников,
// административного HTTP-сервера, хранилища маркеров и получателей.
type App struct {
	config     *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
	store      storage.MarkerStore
	publishers map[string]publisher.Publisher
	processor  *usecase.FeedProcessingUseCase
	server     *http.Server
	worker     *worker.Worker
	stopChan   chan os.Signal
	wg         sync.WaitGroup
}

// New создает и инициализирует приложение: логгер, хранилище маркеров,
// получателей, источники, планировщик и HTTP-сервер.
// При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	appLogger, logCloser := logger.New(cfg.Logger)
	slog.SetDefault(appLogger)
	a := &App{
		config:    cfg,
		logger:    appLogger,
		logCloser: logCloser,
		stopChan:  make(chan os.Signal, 1),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.store, err = storage.Open(ctx, cfg.Store, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to open marker store: %w", err)
	}
	a.publishers, err = publisher.BuildAll(ctx, publisher.DefaultRegistry(), cfg.Publishers, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to build publishers: %w", err)
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.Options{
		Timeout:   config.Duration(cfg.HTTP.Timeout, 30*time.Second),
		UserAgent: cfg.HTTP.UserAgent,
	}, appLogger)
	feedParser := parser.New(appLogger)

	routes := make([]usecase.SourceRoute, 0, len(cfg.Sources))
	jobs := make([]worker.Job, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		routes = append(routes, usecase.SourceRoute{
			Source:     a.newSource(src, httpFetcher, feedParser),
			Publishers: a.publishersFor(src),
		})
		jobs = append(jobs, worker.Job{SourceID: src.ID, Schedule: src.Schedule})
	}

	var sum usecase.Summarizer
	if openAI := summarizer.New(cfg.Summarizer, appLogger); openAI.Enabled() {
		sum = openAI
	} else {
		appLogger.Info("Summarizer disabled, no API key configured", slog.String("component", "app"))
	}
	a.processor = usecase.NewFeedProcessingUseCase(
		routes,
		sum,
		a.store,
		config.Duration(cfg.Delivery.Pause, 3*time.Second),
		appLogger,
	)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bad scheduler timezone: %w", err)
	}
	runTimeout := config.Duration(cfg.Scheduler.RunTimeout, 5*time.Minute)
	a.worker, err = worker.New(a.processor, jobs, loc, runTimeout, appLogger)
	if err != nil {
		return nil, fmt.Errorf("bad init worker: %w", err)
	}

	handler := server.NewHandler(appLogger, a.processor, runTimeout)
	a.server = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.NewServer(appLogger, cfg.Server, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) newSource(src config.SourceConfig, f usecase.FeedFetcher, p usecase.FeedParser) *usecase.Source {
	settings := usecase.SourceSettings{
		ID:         src.ID,
		Name:       src.Name,
		Kind:       domain.SourceKind(src.Kind),
		URL:        src.URL,
		Namespace:  src.Namespace,
		BatchLimit: src.BatchLimit,
		MoreURL:    src.Digest.MoreURL,
	}
	if src.UseProxy {
		settings.Proxy = a.config.HTTP.Proxy
	}
	var extractor usecase.Extractor
	if settings.Kind == domain.KindDigest {
		extractor = digest.NewTableExtractor(digest.Options{
			LinkPrefix:  src.Digest.LinkPrefix,
			FontMarkers: src.Digest.FontMarkers,
		}, a.logger)
	}
	return usecase.NewSource(settings, f, p, extractor, a.store, a.logger)
}

// publishersFor возвращает получателей источника. Пустой список означает всех включенных.
func (a *App) publishersFor(src config.SourceConfig) []usecase.Publisher {
	var out []usecase.Publisher
	if len(src.Publishers) == 0 {
		for _, pc := range a.config.Publishers {
			if p, ok := a.publishers[pc.ID]; ok {
				out = append(out, p)
			}
		}
		return out
	}
	for _, id := range src.Publishers {
		p, ok := a.publishers[id]
		if !ok {
			a.logger.Warn("Publisher is disabled, skipping",
				slog.String("component", "app"),
				slog.String("source", src.ID),
				slog.String("publisher", id),
			)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Run запускает планировщик и HTTP-сервер и блокируется до сигнала завершения.
func (a *App) Run() error {
	a.logger.Info("Starting feedrelay",
		slog.String("component", "app"),
		slog.Int("feed_count", len(a.config.Sources)),
		slog.Int("publishers", len(a.publishers)),
		slog.String("timezone", a.config.Scheduler.Timezone),
	)
	serverErr := make(chan error, 1)
	if a.server.Addr != "" {
		listener, err := net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("failed to create listener: %w", err)
		}
		a.logger.Info("HTTP server ready",
			slog.String("component", "server"),
			slog.String("address", listener.Addr().String()),
		)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("HTTP server failed", slog.String("component", "server"), slog.Any("error", err))
				serverErr <- err
			}
		}()
	}
	a.worker.Start()
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)
	select {
	case sig := <-a.stopChan:
		a.logger.Info("Shutdown signal received",
			slog.String("component", "app"),
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
		return errors.Join(err, a.Shutdown())
	}
	return a.Shutdown()
}

// RunOnce обрабатывает один источник (или все, если id равен AllSources) без планировщика.
// В режиме preview печатает выбранные материалы в out, не записывая маркеры и ничего не доставляя.
// Для AllSources в out попадают пакеты всех источников, ключ - id источника.
func (a *App) RunOnce(ctx context.Context, id string, preview bool, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	switch {
	case preview && id == AllSources:
		batches := make(map[string]*domain.Batch)
		var errs []error
		for _, sourceID := range a.processor.SourceIDs() {
			batch, err := a.processor.Preview(ctx, sourceID, 0)
			if err != nil {
				errs = append(errs, fmt.Errorf("preview %s: %w", sourceID, err))
				continue
			}
			batches[sourceID] = batch
		}
		if err := enc.Encode(batches); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	case preview:
		batch, err := a.processor.Preview(ctx, id, 0)
		if err != nil {
			return err
		}
		return enc.Encode(batch)
	case id == AllSources:
		if failed := a.worker.RunAll(ctx); failed > 0 {
			return fmt.Errorf("%d of %d sources failed", failed, len(a.config.Sources))
		}
		return nil
	default:
		report, err := a.processor.ProcessSource(ctx, id)
		if encErr := enc.Encode(report); encErr != nil {
			return errors.Join(err, encErr)
		}
		return err
	}
}

// Shutdown останавливает планировщик и HTTP-сервер, затем освобождает ресурсы.
func (a *App) Shutdown() error {
	a.logger.Info("Starting graceful shutdown", slog.String("component", "app"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.worker.Stop(shutdownCtx)
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", slog.Any("error", err))
	}
	a.wg.Wait()
	a.logger.Info("Application stopped gracefully", slog.String("component", "app"))
	return a.Close()
}

// Close закрывает получателей, хранилище маркеров и файлы логов.
func (a *App) Close() error {
	var errs []error
	if a.publishers != nil {
		errs = append(errs, publisher.CloseAll(a.publishers))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
