package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
)

var (
	// ErrQueueFull is returned by Submit when the key's shard has no room.
	ErrQueueFull = errors.New("dispatch queue full")
	// ErrStopped is returned by Submit after Stop has been called.
	ErrStopped = errors.New("dispatcher stopped")
)

// Job is one unit of work. Errors classified as retryable by pkg/errors are
// retried with backoff; everything else fails the job immediately.
type Job func(ctx context.Context) error

// DropFunc observes a job that exhausted its attempts. id is the value given
// to Submit.
type DropFunc func(key, id string, err error)

type Options struct {
	Shards      int
	QueueDepth  int
	MaxAttempts int
	BaseBackoff time.Duration
	// JobTimeout bounds a single attempt. Zero means no bound.
	JobTimeout time.Duration
	Logger     *logger.Logger
	OnDrop     DropFunc
}

type task struct {
	key string
	id  string
	job Job
}

// Dispatcher runs jobs on a fixed set of shards. Jobs submitted under the same
// key land on the same shard and run one at a time in submission order.
type Dispatcher struct {
	shards      []chan task
	maxAttempts int
	baseBackoff time.Duration
	jobTimeout  time.Duration
	logg        *logger.Logger
	onDrop      DropFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func New(opts Options) *Dispatcher {
	shards := opts.Shards
	if shards <= 0 {
		shards = 4
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = 256
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	backoff := opts.BaseBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		shards:      make([]chan task, shards),
		maxAttempts: attempts,
		baseBackoff: backoff,
		jobTimeout:  opts.JobTimeout,
		logg:        opts.Logger,
		onDrop:      opts.OnDrop,
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := range d.shards {
		d.shards[i] = make(chan task, depth)
		d.wg.Add(1)
		go d.run(i, d.shards[i])
	}
	return d
}

// Submit queues job under key without blocking. id only labels the job in
// logs and drop callbacks.
func (d *Dispatcher) Submit(key, id string, job Job) error {
	if job == nil {
		return fmt.Errorf("job is required")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.shards[d.shardFor(key)] <- task{key: key, id: id, job: job}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new jobs and waits for queued ones to finish. If ctx expires
// first, in-flight retries are cancelled and ctx's error is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.shards {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) shardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(d.shards)))
}

func (d *Dispatcher) run(shard int, queue <-chan task) {
	defer d.wg.Done()
	for t := range queue {
		d.execute(shard, t)
	}
}

func (d *Dispatcher) execute(shard int, t task) {
	backoff := retry.WithMaxRetries(uint64(d.maxAttempts-1), retry.NewExponential(d.baseBackoff))
	attempt := 0
	err := retry.Do(d.ctx, backoff, func(ctx context.Context) error {
		attempt++
		if d.jobTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.jobTimeout)
			defer cancel()
		}
		err := runSafely(ctx, t.job)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return
	}

	if d.logg != nil {
		ctx := d.logg.WithFields(d.ctx, map[string]any{
			"dispatch_key": t.key,
			"task_id":      t.id,
			"shard":        shard,
			"attempts":     attempt,
		})
		d.logg.Error(ctx, "dispatch.job_dropped", err)
	}
	if d.onDrop != nil {
		d.onDrop(t.key, t.id, err)
	}
}

func runSafely(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("job panicked: %v", r))
		}
	}()
	return job(ctx)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if typed := pkgerrors.As(err); typed != nil {
		return pkgerrors.MetadataFor(typed.Code()).Retryable
	}
	return true
}
