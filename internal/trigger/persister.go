package trigger

import (
	"context"
	"sync"

	"github.com/annel0/trigger-store/internal/world"
)

// persistRequest запрос записи одной координаты. Запрос с done: барьер Flush.
type persistRequest struct {
	loc  world.Location
	done chan struct{}
}

// persister фоновая запись изменений (write-behind). Один воркер обрабатывает
// очередь по порядку, поэтому запросы одной координаты применяются в порядке
// постановки, а запись всегда берёт актуальное состояние из памяти.
type persister struct {
	store *Store
	queue chan persistRequest

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newPersister(s *Store, size int) *persister {
	p := &persister{
		store: s,
		queue: make(chan persistRequest, size),
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

// enqueue ставит координату в очередь. Блокируется только если очередь полна.
func (p *persister) enqueue(loc world.Location) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStoreClosed
	}
	p.queue <- persistRequest{loc: loc}
	p.store.metrics.queueDepth.Set(float64(len(p.queue)))
	return nil
}

func (p *persister) flush(ctx context.Context) error {
	done := make(chan struct{})

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrStoreClosed
	}
	select {
	case p.queue <- persistRequest{done: done}:
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	p.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *persister) worker() {
	defer p.wg.Done()

	for req := range p.queue {
		p.store.metrics.queueDepth.Set(float64(len(p.queue)))
		if req.done != nil {
			close(req.done)
			continue
		}
		p.store.persistLocation(req.loc)
	}
}
