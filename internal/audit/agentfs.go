package audit

/*
Файл agentfs.go реализует компонент Agent File System — асинхронный журнал решений
(Audit Trail): каждое ревью, его уверенность, причина defer и итоговая рекомендация.

Ключевые особенности архитектуры:
- Non-blocking Logging: неблокирующий канал между пайплайном ревью и записью в БД.
  Задержки записи в БД не влияют на время ответа.
- Batching: накопление событий в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении размера пачки.
- Drain Pattern & Graceful Shutdown: Реализован механизм полной вычитки буфера
  при остановке сервиса. С помощью sync.WaitGroup и закрытия каналов гарантируется
  Final Flush — отсутствие потерь данных при перезагрузке системы.
- Reliability: Устойчивость к кратковременным сбоям БД за счет изоляции воркера
  и использования контекста Background для завершающих операций.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []ReviewEvent) error
}

type Auditor interface {
	Log(event ReviewEvent)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func DefaultOptions() Options {
	return Options{BufferSize: 10000, BatchSize: 100, FlushInterval: 500 * time.Millisecond}
}

type AgentFS struct {
	ch     chan ReviewEvent // Буфер для асинхронности
	repo   StorageInterface
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup
	// Защита от Log после Stop
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewAgentFS(repo StorageInterface, opts Options, logger *zap.Logger) *AgentFS {
	def := DefaultOptions()
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = def.FlushInterval
	}

	return &AgentFS{
		ch:     make(chan ReviewEvent, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.With(zap.String("mod", "agentfs")),
	}
}

func (fs *AgentFS) Start() {
	fs.wg.Add(1)
	go fs.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (fs *AgentFS) Stop() {
	if !atomic.CompareAndSwapInt32(&fs.isClosed, 0, 1) {
		return
	}

	// Даем крошечную паузу, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	// Завершение горутины происходит исключительно через закрытие входного канала (Drain Pattern).
	fs.logger.Info("stopping auditor: closing channel and flushing buffer...")
	close(fs.ch)
	fs.wg.Wait()
	fs.logger.Info("auditor stopped gracefully")
}

// Pending — сколько событий ждет записи (для метрики заполненности буфера).
func (fs *AgentFS) Pending() int {
	return len(fs.ch)
}

func (fs *AgentFS) Log(event ReviewEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&fs.isClosed) == 1 {
		fs.logger.Warn("audit event dropped: auditor is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: переполненный буфер не должен тормозить ревью
	select {
	case fs.ch <- event:
	default:
		// Решение не теряется целиком: ключевые поля уходят в лог
		fs.logger.Error("audit_buffer_overflow",
			zap.String("review_id", event.ReviewID),
			zap.String("trace_id", event.TraceID),
			zap.String("recommendation", event.Recommendation),
			zap.Bool("deferred", event.Deferred),
		)
	}
}

func (fs *AgentFS) worker() {
	defer fs.wg.Done()

	batch := make([]ReviewEvent, 0, fs.opts.BatchSize)
	ticker := time.NewTicker(fs.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Используем Background, так как основной контекст может быть уже закрыт
			if err := fs.repo.WriteBatch(context.Background(), batch); err != nil {
				fs.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-fs.ch:
			if !ok {
				// Канал закрыт в Stop(): сначала вычитали всё, что осталось, потом ok == false
				flush()
				fs.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= fs.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
