package usage

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink applies one increment. The account store and the SQS publisher both
// satisfy it.
type Sink interface {
	IncrementUsage(ctx context.Context, accountID string) error
}

const (
	defaultBuffer    = 1024
	incrementTimeout = 10 * time.Second
)

// Worker applies increments off the request path. Record drops the
// increment with a warning when the buffer is full.
type Worker struct {
	sink    Sink
	log     logrus.FieldLogger
	workers int
	queue   chan string

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWorker builds a worker pool. workers <= 0 means one per CPU and
// buffer <= 0 uses the default capacity.
func NewWorker(sink Sink, workers, buffer int, log logrus.FieldLogger) *Worker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Worker{
		sink:    sink,
		log:     log,
		workers: WorkerCount(workers),
		queue:   make(chan string, buffer),
	}
}

// WorkerCount falls back to the number of CPUs when n is not positive.
func WorkerCount(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func (w *Worker) Start() {
	w.log.WithField("workers", w.workers).Info("starting usage workers")
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(i)
	}
}

func (w *Worker) Record(accountID string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		w.log.WithField("account_id", accountID).Warn("usage worker stopped, dropping increment")
		return
	}

	select {
	case w.queue <- accountID:
	default:
		w.log.WithField("account_id", accountID).Warn("usage buffer full, dropping increment")
	}
}

// Stop closes the queue and waits for queued increments to be applied.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.queue)
		w.mu.Unlock()
	})
	w.wg.Wait()
}

func (w *Worker) run(id int) {
	defer w.wg.Done()
	for accountID := range w.queue {
		w.apply(id, accountID)
	}
}

func (w *Worker) apply(workerID int, accountID string) {
	ctx, cancel := context.WithTimeout(context.Background(), incrementTimeout)
	defer cancel()

	if err := w.sink.IncrementUsage(ctx, accountID); err != nil {
		w.log.WithFields(logrus.Fields{
			"worker":     workerID,
			"account_id": accountID,
		}).WithError(err).Error("increment usage failed")
	}
}

// SyncRecorder applies increments inline. Used where no worker pool runs,
// such as a single Lambda invocation.
type SyncRecorder struct {
	Sink Sink
	Log  logrus.FieldLogger
}

func (r SyncRecorder) Record(accountID string) {
	ctx, cancel := context.WithTimeout(context.Background(), incrementTimeout)
	defer cancel()
	if err := r.Sink.IncrementUsage(ctx, accountID); err != nil {
		r.Log.WithField("account_id", accountID).WithError(err).Error("increment usage failed")
	}
}
