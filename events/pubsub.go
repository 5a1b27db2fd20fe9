//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package events

import (
	"sync"

	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

// Handler receives every Record published on a PubSub.
type Handler func(Record)

// PubSub fans a Record out to every subscribed Handler on its own
// goroutine, the same shape as the control plane's own event bus: a
// single internal reactor draining a buffered channel, so a slow or
// misbehaving subscriber cannot block the Health Evaluator's publish
// call.
type PubSub struct {
	log logging.Logger

	mu          sync.RWMutex
	subscribers []Handler

	publishCh chan Record
	shutdownCh chan struct{}
	wg        sync.WaitGroup
}

// NewPubSub starts the internal reactor goroutine and returns a ready
// PubSub. Call Close to stop it.
func NewPubSub(log logging.Logger) *PubSub {
	log = logging.MustLogger(log)
	ps := &PubSub{
		log:        log,
		publishCh:  make(chan Record, 64),
		shutdownCh: make(chan struct{}),
	}
	ps.wg.Add(1)
	go ps.run()
	return ps
}

// Subscribe registers h to receive every future Published Record.
func (ps *PubSub) Subscribe(h Handler) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.subscribers = append(ps.subscribers, h)
}

// Reset removes every subscriber, used by tests to isolate runs.
func (ps *PubSub) Reset() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.subscribers = nil
}

// Publish enqueues r for delivery to every current subscriber. Never
// blocks the caller for longer than it takes to enqueue.
func (ps *PubSub) Publish(r Record) {
	select {
	case ps.publishCh <- r:
	case <-ps.shutdownCh:
	}
}

func (ps *PubSub) run() {
	defer ps.wg.Done()
	for {
		select {
		case r := <-ps.publishCh:
			ps.dispatch(r)
		case <-ps.shutdownCh:
			return
		}
	}
}

func (ps *PubSub) dispatch(r Record) {
	ps.mu.RLock()
	handlers := make([]Handler, len(ps.subscribers))
	copy(handlers, ps.subscribers)
	ps.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					ps.log.Errorf("event subscriber panicked: %v", rec)
				}
			}()
			h(r)
		}()
	}
}

// Close stops the reactor goroutine. Safe to call once.
func (ps *PubSub) Close() {
	close(ps.shutdownCh)
	ps.wg.Wait()
}
