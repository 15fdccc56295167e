// Package uploader contains the segment uploader.
package uploader

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/a10y/camerars/internal/logger"
)

// ObjectStore is a remote destination of segments.
type ObjectStore interface {
	Put(ctx context.Context, key string, fpath string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Uploader sends completed segments to an object store.
//
// Segments are uploaded one at a time, in completion order. Each upload
// is attempted up to MaxAttempts times with exponential backoff; a
// segment that still fails is dropped from the queue, while its local
// copy stays on disk, and the following segments are processed normally.
//
// When Store is nil the uploader is disabled: Enqueue does nothing and
// ReadChunk serves the local copies instead.
type Uploader struct {
	Store       ObjectStore
	Prefix      string
	LocalDir    string
	QueueSize   int
	MaxAttempts int
	Parent      logger.Writer

	backoffInitial time.Duration
	backoffCap     time.Duration

	ctx       context.Context
	ctxCancel func()
	queue     chan string

	done chan struct{}
}

// Initialize initializes Uploader.
func (u *Uploader) Initialize() {
	if u.backoffInitial == 0 {
		u.backoffInitial = 1 * time.Second
	}
	if u.backoffCap == 0 {
		u.backoffCap = 30 * time.Second
	}

	u.ctx, u.ctxCancel = context.WithCancel(context.Background())
	u.queue = make(chan string, u.QueueSize)
	u.done = make(chan struct{})

	if u.Store == nil {
		u.Log(logger.Info, "no object store configured, segments are kept on disk only")
		close(u.done)
		return
	}

	go u.run()
}

// Log implements logger.Writer.
func (u *Uploader) Log(level logger.Level, format string, args ...interface{}) {
	u.Parent.Log(level, "[uploader] "+format, args...)
}

// Close closes the uploader. Segments that were still queued are
// dropped; their local copies stay in place.
func (u *Uploader) Close() {
	u.ctxCancel()
	<-u.done
}

// Enqueue schedules the upload of a segment. It blocks when the queue
// is full, pacing the caller down to the upload speed.
func (u *Uploader) Enqueue(fpath string) {
	if u.Store == nil {
		return
	}

	select {
	case u.queue <- fpath:
	case <-u.ctx.Done():
	}
}

// ReadChunk returns the content of a stored segment.
func (u *Uploader) ReadChunk(ctx context.Context, name string) ([]byte, error) {
	// the name comes from the request path; keep it inside the segment namespace.
	name = filepath.Base(name)

	if u.Store == nil {
		return os.ReadFile(filepath.Join(u.LocalDir, name))
	}

	return u.Store.Get(ctx, u.remoteKey(name))
}

func (u *Uploader) run() {
	defer close(u.done)

	for {
		select {
		case fpath := <-u.queue:
			u.processEntry(fpath)

		case <-u.ctx.Done():
			return
		}
	}
}

func (u *Uploader) processEntry(fpath string) {
	key := u.remoteKey(filepath.Base(fpath))
	attempts := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = u.backoffInitial
	bo.MaxInterval = u.backoffCap
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		attempts++

		err := u.Store.Put(u.ctx, key, fpath)
		if err != nil {
			u.Log(logger.Warn, "unable to upload %s (attempt %d/%d): %s",
				fpath, attempts, u.MaxAttempts, err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(u.MaxAttempts-1)), u.ctx))
	if err != nil {
		u.Log(logger.Error, "giving up on %s: %s", fpath, err)
		return
	}

	u.Log(logger.Debug, "uploaded %s", key)
}

func (u *Uploader) remoteKey(name string) string {
	return path.Join(strings.Trim(u.Prefix, "/"), name)
}
