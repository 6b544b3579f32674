// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for the extension runtime. Registered into the observability
// server's registry via Collectors.
var (
	// loadsTotal counts artifact loads by entry point and result.
	loadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storeloft_extension_loads_total",
		Help: "Total number of extension artifact loads by entry point and result",
	}, []string{"entry_point", "result"})

	// loadDuration tracks artifact load latency, cache hits included.
	loadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storeloft_extension_load_duration_seconds",
		Help:    "Histogram of extension artifact load latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// cacheHits counts registry cache hits on load operations.
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storeloft_extension_registry_cache_hits_total",
		Help: "Total number of registry cache hits during loads",
	})

	// hookFailures counts lifecycle hook failures by hook name.
	hookFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storeloft_extension_hook_failures_total",
		Help: "Total number of lifecycle hook failures by hook",
	}, []string{"hook"})

	// lifecycleOps counts manager lifecycle operations by operation and result.
	lifecycleOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storeloft_extension_lifecycle_operations_total",
		Help: "Total number of installation lifecycle operations",
	}, []string{"operation", "result"})
)

// Collectors returns the runtime's Prometheus collectors for registration
// into a metrics registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		loadsTotal,
		loadDuration,
		cacheHits,
		hookFailures,
		lifecycleOps,
	}
}

func recordLoad(entryPoint EntryPoint, result string, elapsed time.Duration) {
	loadsTotal.WithLabelValues(string(entryPoint), result).Inc()
	loadDuration.Observe(elapsed.Seconds())
}

func recordCacheHit() {
	cacheHits.Inc()
}

func recordHookFailure(name HookName) {
	hookFailures.WithLabelValues(string(name)).Inc()
}

func recordLifecycle(operation, result string) {
	lifecycleOps.WithLabelValues(operation, result).Inc()
}
