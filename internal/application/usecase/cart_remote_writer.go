// internal/application/usecase/cart_remote_writer.go
package usecase

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	cartdom "storefront/internal/domain/cart"
)

// defaultCloseGrace is how long Close lets queued writes finish before in-flight calls
// are cancelled.
const defaultCloseGrace = 5 * time.Second

type remoteJobKind int

const (
	remoteJobPut remoteJobKind = iota
	remoteJobDelete
	remoteJobBarrier
	remoteJobSeed
)

type remoteJob struct {
	kind   remoteJobKind
	userID string
	items  []cartdom.CartItem
	doc    *cartdom.Cart // remoteJobSeed only
	result chan error    // nil for fire-and-forget jobs
}

// remoteWriter serializes every remote write of one session on a single goroutine,
// so a later upsert/delete can never land before an earlier one.
//
// Enqueueing never blocks. Each put carries the full list, so a put queued right behind
// a pending put for the same user replaces it (latest wins).
type remoteWriter struct {
	remote     cartdom.RemoteStore
	clock      Clock
	timeout    time.Duration
	closeGrace time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	queue  []remoteJob
	wake   chan struct{}
	exited chan struct{}

	// writer goroutine only: last doc written or loaded per user
	docs map[string]*cartdom.Cart
}

func newRemoteWriter(remote cartdom.RemoteStore, clock Clock, timeout, closeGrace time.Duration) *remoteWriter {
	if closeGrace <= 0 {
		closeGrace = defaultCloseGrace
	}
	base, cancel := context.WithCancel(context.Background())
	w := &remoteWriter{
		remote:     remote,
		clock:      clock,
		timeout:    timeout,
		closeGrace: closeGrace,
		base:       base,
		cancel:     cancel,
		wake:       make(chan struct{}, 1),
		exited:     make(chan struct{}),
		docs:       map[string]*cartdom.Cart{},
	}
	go w.run()
	return w
}

func (w *remoteWriter) run() {
	defer close(w.exited)
	for {
		job, ok := w.next()
		if !ok {
			return
		}
		var err error
		switch job.kind {
		case remoteJobPut:
			err = w.put(job.userID, job.items)
			if err != nil {
				// best-effort: the in-memory state stays authoritative
				log.Printf("[cart_remote_writer] WARN: upsert failed userId=%q items=%d err=%v", job.userID, len(job.items), err)
			}
		case remoteJobDelete:
			err = w.delete(job.userID)
		case remoteJobSeed:
			w.docs[job.doc.ID] = job.doc
		case remoteJobBarrier:
		}
		if job.result != nil {
			job.result <- err
		}
	}
}

// next blocks until a job is queued. It reports false once the writer is closed and
// the queue has been drained.
func (w *remoteWriter) next() (remoteJob, bool) {
	for {
		w.mu.Lock()
		if len(w.queue) > 0 {
			job := w.queue[0]
			w.queue[0] = remoteJob{}
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return job, true
		}
		if w.closed {
			w.mu.Unlock()
			return remoteJob{}, false
		}
		w.mu.Unlock()
		<-w.wake
	}
}

func (w *remoteWriter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *remoteWriter) callCtx() (context.Context, context.CancelFunc) {
	if w.timeout > 0 {
		return context.WithTimeout(w.base, w.timeout)
	}
	return context.WithCancel(w.base)
}

// put writes the full list. An existing doc is updated with Replace so createdAt stays
// what it was when the cart was first stored.
func (w *remoteWriter) put(userID string, items []cartdom.CartItem) error {
	now := w.clock.Now()
	var (
		c   *cartdom.Cart
		err error
	)
	if prev, ok := w.docs[userID]; ok {
		next := *prev
		err = next.Replace(items, now)
		c = &next
	} else {
		c, err = cartdom.NewCart(userID, items, now)
	}
	if err != nil {
		return err
	}

	ctx, cancel := w.callCtx()
	defer cancel()
	if err := w.remote.Upsert(ctx, c); err != nil {
		return err
	}
	w.docs[userID] = c
	return nil
}

func (w *remoteWriter) delete(userID string) error {
	ctx, cancel := w.callCtx()
	defer cancel()
	if err := w.remote.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	delete(w.docs, userID)
	return nil
}

// enqueue returns false once the writer has been closed.
func (w *remoteWriter) enqueue(job remoteJob) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	if n := len(w.queue); job.kind == remoteJobPut && n > 0 {
		tail := &w.queue[n-1]
		if tail.kind == remoteJobPut && tail.userID == job.userID {
			tail.items = job.items
			w.mu.Unlock()
			return true
		}
	}
	w.queue = append(w.queue, job)
	w.mu.Unlock()
	w.signal()
	return true
}

// Put schedules a full-list upsert and returns immediately.
func (w *remoteWriter) Put(userID string, items []cartdom.CartItem) {
	if !w.enqueue(remoteJob{kind: remoteJobPut, userID: userID, items: cartdom.Clone(items)}) {
		log.Printf("[cart_remote_writer] WARN: writer closed, dropping upsert userId=%q", userID)
	}
}

// Seed records the doc the remote store returned on load, so later puts keep its createdAt.
func (w *remoteWriter) Seed(userID string, c *cartdom.Cart) {
	if c == nil || userID == "" {
		return
	}
	doc := *c
	doc.ID = userID
	doc.Items = cartdom.Clone(c.Items)
	w.enqueue(remoteJob{kind: remoteJobSeed, userID: userID, doc: &doc})
}

// Delete schedules a delete behind every pending write and waits for its outcome.
func (w *remoteWriter) Delete(ctx context.Context, userID string) error {
	return w.await(ctx, remoteJob{kind: remoteJobDelete, userID: userID})
}

// Settle waits until every write queued before the call has been attempted.
func (w *remoteWriter) Settle(ctx context.Context) error {
	return w.await(ctx, remoteJob{kind: remoteJobBarrier})
}

func (w *remoteWriter) await(ctx context.Context, job remoteJob) error {
	job.result = make(chan error, 1)
	if !w.enqueue(job) {
		return ErrManagerClosed
	}
	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and drains what is queued. Calls still running after
// closeGrace are cancelled.
func (w *remoteWriter) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
	defer w.cancel()

	t := time.NewTimer(w.closeGrace)
	defer t.Stop()
	select {
	case <-w.exited:
	case <-t.C:
		log.Printf("[cart_remote_writer] WARN: remote writes still pending after %s, cancelling", w.closeGrace)
		w.cancel()
		<-w.exited
	}
}

var errNoRemote = errors.New("cart_remote_writer: remote store is nil")

// nilRemote keeps the manager usable (anonymous-only) when no remote store is wired.
type nilRemote struct{}

func (nilRemote) GetByUserID(context.Context, string) (*cartdom.Cart, error) { return nil, errNoRemote }
func (nilRemote) Upsert(context.Context, *cartdom.Cart) error                { return errNoRemote }
func (nilRemote) DeleteByUserID(context.Context, string) error               { return errNoRemote }

// nilLocal is used when no local store is wired: nothing is ever stored.
type nilLocal struct{}

func (nilLocal) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (nilLocal) Set(context.Context, string, string) error         { return nil }
func (nilLocal) Remove(context.Context, string) error              { return nil }
