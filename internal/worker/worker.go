package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"feedrelay/internal/usecase"

	"github.com/robfig/cron/v3"
)

// SourceProcessor обрабатывает один источник по идентификатору.
// Используется для внедрения зависимости в воркер.
type SourceProcessor interface {
	ProcessSource(ctx context.Context, id string) (usecase.Report, error)
}

// Job - расписание одного источника.
type Job struct {
	SourceID string
	Schedule string
}

var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule разбирает cron-выражение с секундами. Допускается седьмое поле
// года, но только в виде "*": запуск по конкретным годам не поддерживается.
func ParseSchedule(spec string) (cron.Schedule, error) {
	fields := strings.Fields(spec)
	if len(fields) == 7 {
		if fields[6] != "*" {
			return nil, fmt.Errorf("schedule %q: year field must be *", spec)
		}
		spec = strings.Join(fields[:6], " ")
	}
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Worker запускает обработку источников по их cron-расписаниям.
// Повторный запуск источника пропускается, пока не завершился предыдущий.
type Worker struct {
	processor  SourceProcessor
	jobs       []Job
	runTimeout time.Duration
	cron       *cron.Cron
	log        *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// New создает воркер. Расписания проверяются сразу, ошибка в любом из них
// возвращается до запуска.
func New(processor SourceProcessor, jobs []Job, loc *time.Location, runTimeout time.Duration, log *slog.Logger) (*Worker, error) {
	if loc == nil {
		loc = time.Local
	}
	log = log.With(slog.String("component", "worker"))
	w := &Worker{
		processor:  processor,
		jobs:       jobs,
		runTimeout: runTimeout,
		log:        log,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(scheduleParser),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	for _, job := range jobs {
		schedule, err := ParseSchedule(job.Schedule)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", job.SourceID, err)
		}
		id := job.SourceID
		w.cron.Schedule(schedule, cron.FuncJob(func() { w.runSource(id) }))
	}
	return w, nil
}

// Start запускает планировщик в отдельной горутине.
func (w *Worker) Start() {
	w.log.Info("Feed processing worker started", slog.Int("feed_count", len(w.jobs)))
	for _, e := range w.cron.Entries() {
		w.log.Debug("Next run scheduled", slog.Time("next", e.Next))
	}
	w.cron.Start()
}

// Stop останавливает планировщик, отменяет текущие запуски и ждет их завершения
// не дольше, чем ctx.
func (w *Worker) Stop(ctx context.Context) {
	stopped := w.cron.Stop()
	w.cancel()
	select {
	case <-stopped.Done():
		w.log.Info("Worker stopped")
	case <-ctx.Done():
		w.log.Warn("Worker stop timed out", slog.Any("error", ctx.Err()))
	}
}

// Entries возвращает число зарегистрированных расписаний.
func (w *Worker) Entries() int { return len(w.cron.Entries()) }

// RunAll однократно обрабатывает все источники параллельно, не дожидаясь расписания.
// Возвращает число неудачных запусков.
func (w *Worker) RunAll(ctx context.Context) int {
	start := time.Now()
	w.log.Info("Feed processing cycle started", slog.Int("feeds_to_process", len(w.jobs)))
	var wg sync.WaitGroup
	var successCount, errorCount int64
	for _, job := range w.jobs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if w.process(ctx, id) != nil {
				atomic.AddInt64(&errorCount, 1)
				return
			}
			atomic.AddInt64(&successCount, 1)
		}(job.SourceID)
	}
	wg.Wait()
	w.log.Info("Feed processing cycle completed",
		slog.Int("successful", int(successCount)),
		slog.Int("errors", int(errorCount)),
		slog.Int("total", len(w.jobs)),
		slog.Duration("duration", time.Since(start)),
	)
	return int(errorCount)
}

func (w *Worker) runSource(id string) {
	if w.ctx.Err() != nil {
		return
	}
	w.process(w.ctx, id)
}

func (w *Worker) process(ctx context.Context, id string) error {
	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}
	report, err := w.processor.ProcessSource(ctx, id)
	if err != nil {
		w.log.Error("Feed processing failed", slog.String("source", id), slog.Any("error", err))
		return err
	}
	w.log.Debug("Feed processed",
		slog.String("source", id),
		slog.Int("count", report.Items),
		slog.Duration("duration", report.Duration),
	)
	return nil
}

// cronLogger направляет сообщения планировщика в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
