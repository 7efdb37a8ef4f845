// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lightpages.
//
// go-lightpages is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics exports pipeline and stylesheet telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeremyhahn/go-lightpages/pkg/publisher"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "lightpages"

// PrometheusObserver records publisher stages and stylesheet refreshes.
type PrometheusObserver struct {
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	uploadBytes   prometheus.Counter
	cssRefreshes  *prometheus.CounterVec
}

// NewPrometheusObserver registers the collectors with reg, reusing any that
// are already registered. A nil reg selects the default registerer.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_stage_duration_seconds",
			Help:      "Latency of asset pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_stage_errors_total",
			Help:      "Count of failed asset pipeline stages.",
		}, []string{"stage"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Cumulative payload size successfully uploaded to object storage.",
		}),
		cssRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stylesheet_refreshes_total",
			Help:      "Stylesheet refreshes by trigger.",
		}, []string{"trigger"}),
	}

	var err error
	if o.stageDuration, err = register(reg, o.stageDuration); err != nil {
		return nil, err
	}
	if o.stageErrors, err = register(reg, o.stageErrors); err != nil {
		return nil, err
	}
	if o.uploadBytes, err = register(reg, o.uploadBytes); err != nil {
		return nil, err
	}
	if o.cssRefreshes, err = register(reg, o.cssRefreshes); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register metric: %w", err)
}

// RecordTranscode tracks transcode latency and failures.
func (o *PrometheusObserver) RecordTranscode(duration time.Duration, err error) {
	recordStage(o, publisher.StageTranscode, duration, err)
}

// RecordUpload tracks upload latency, size and failures.
func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes uint64, err error) {
	if o == nil {
		return
	}
	recordStage(o, publisher.StageUpload, duration, err)
	if err == nil {
		o.uploadBytes.Add(float64(sizeBytes))
	}
}

func (o *PrometheusObserver) RecordDelete(duration time.Duration, err error) {
	recordStage(o, publisher.StageDelete, duration, err)
}

// RecordStylesheetRefresh counts a refresh triggered by trigger ("bust" or
// "watch").
func (o *PrometheusObserver) RecordStylesheetRefresh(trigger string) {
	if o == nil {
		return
	}
	o.cssRefreshes.WithLabelValues(trigger).Inc()
}

func recordStage(o *PrometheusObserver, stage publisher.Stage, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
	if err != nil {
		o.stageErrors.WithLabelValues(string(stage)).Inc()
	}
}

var _ publisher.Observer = (*PrometheusObserver)(nil)
