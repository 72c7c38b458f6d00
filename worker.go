// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"log"
	"sync/atomic"
)

// worker owns the goroutine that drains one completion queue,
// advancing whichever call each event is tagged with. It runs until
// the queue reports itself drained after a cooperative shutdown; queue
// shutdown is the sole cancellation mechanism.
type worker struct {
	id      string
	kind    string
	cq      *CompletionQueue
	handle  func(Event)
	running atomic.Bool
	done    chan struct{}
}

func newWorker(id, kind string, cq *CompletionQueue, handle func(Event)) *worker {
	return &worker{
		id:     id,
		kind:   kind,
		cq:     cq,
		handle: handle,
		done:   make(chan struct{}),
	}
}

func (w *worker) start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	log.Printf("[gymlink] %s %s: worker started", w.kind, w.id)
	go w.run()
}

func (w *worker) run() {
	defer close(w.done)
	for {
		ev, alive := w.cq.Next()
		if !alive {
			log.Printf("[gymlink] %s %s: queue drained, worker exiting", w.kind, w.id)
			return
		}
		w.handle(ev)
	}
}

// stop shuts the queue down and joins the goroutine. Safe to call more
// than once and before start.
func (w *worker) stop() {
	w.cq.Shutdown()
	if w.running.Load() {
		<-w.done
	}
}
