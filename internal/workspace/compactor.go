package workspace

import (
	"context"
	"log"
	"time"
)

// CompactFunc is one periodic compaction task.
type CompactFunc func(ctx context.Context) error

// Compactor periodically runs compaction tasks in the background.
type Compactor struct {
	tasks    []CompactFunc
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCompactor creates a compactor that runs tasks at the given interval.
func NewCompactor(interval time.Duration, tasks ...CompactFunc) *Compactor {
	return &Compactor{
		tasks:    tasks,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// EngineTask adapts Engine.Compact to a CompactFunc.
func EngineTask(e *Engine) CompactFunc {
	return func(ctx context.Context) error {
		_, err := e.Compact(ctx)
		return err
	}
}

// Start launches the background goroutine.
func (c *Compactor) Start() {
	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.RunOnce(context.Background())
			}
		}
	}()
}

// RunOnce runs every task in order. A failing task does not stop the rest.
func (c *Compactor) RunOnce(ctx context.Context) {
	for _, task := range c.tasks {
		if err := task(ctx); err != nil {
			log.Printf("mxws: compaction error: %v", err)
		}
	}
}

// Stop signals the compactor to stop and waits for it to finish.
func (c *Compactor) Stop() {
	close(c.stopCh)
	<-c.doneCh
}
