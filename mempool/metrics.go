// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "msgpool"

// poolMetrics houses the prometheus collectors of a pool.
type poolMetrics struct {
	admissions         *prometheus.CounterVec
	size               prometheus.Gauge
	evictions          prometheus.Counter
	headChanges        *prometheus.CounterVec
	deferred           prometheus.Gauge
	droppedSubscribers prometheus.Counter
}

// newPoolMetrics creates the collectors and registers them with reg when it
// is not nil.  Collectors that are already registered are reused so several
// pools may share a registry.
func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	m := &poolMetrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "admissions_total",
			Help:      "Submitted messages by admission result.",
		}, []string{"result"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_messages",
			Help:      "Number of pending messages in the pool.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evictions_total",
			Help:      "Messages evicted to make room for more valuable ones.",
		}),
		headChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "head_changes_total",
			Help:      "Processed head changes by result.",
		}, []string{"result"}),
		deferred: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "deferred_reconciliations",
			Help:      "Blocks and senders waiting for unavailable state.",
		}),
		droppedSubscribers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_subscribers_total",
			Help:      "Event subscribers dropped for falling behind.",
		}),
	}
	if reg == nil {
		return m
	}

	m.admissions = register(reg, m.admissions)
	m.size = register(reg, m.size)
	m.evictions = register(reg, m.evictions)
	m.headChanges = register(reg, m.headChanges)
	m.deferred = register(reg, m.deferred)
	m.droppedSubscribers = register(reg, m.droppedSubscribers)
	return m
}

// register registers c with reg and returns the collector in use, which is
// the existing one when an equal collector was registered before.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	log.Warnf("Unable to register pool metrics: %v", err)
	return c
}

// admissionResult returns the label under which an admission outcome is
// counted.
func admissionResult(err error) string {
	if err == nil {
		return "accepted"
	}
	var rerr RuleError
	if errors.As(err, &rerr) {
		return rerr.ErrorCode.String()
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {

		return "abandoned"
	}
	return "error"
}
