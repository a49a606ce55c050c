// Mgmt
// Copyright (C) James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package prometheus provides functions that are useful to control and manage
// the compiler metrics.
package prometheus

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPrometheusListen is registered in
// https://github.com/prometheus/prometheus/wiki/Default-port-allocations
const DefaultPrometheusListen = "127.0.0.1:9233"

// Node kinds used as metric labels.
const (
	KindSampled   = "sampled"
	KindObserved  = "observed"
	KindCondition = "condition"
	KindData      = "data"
)

// Prometheus is the struct that contains information about the compiler
// metrics. Run Init() on it.
type Prometheus struct {
	Listen string // the listen specification for the net/http server

	registry *prometheus.Registry
	server   *http.Server

	compileTotal            *prometheus.CounterVec   // total of compilations that have run
	passSeconds             *prometheus.HistogramVec // duration of each compiler pass
	nodesTotal              *prometheus.CounterVec   // graph nodes created, by kind
	processStartTimeSeconds prometheus.Gauge         // process start time in seconds since unix epoch
}

// Init some parameters and register the metrics. Each struct gets its own
// registry, so that more than one can exist at a time.
func (obj *Prometheus) Init() error {
	if len(obj.Listen) == 0 {
		obj.Listen = DefaultPrometheusListen
	}
	obj.registry = prometheus.NewRegistry()

	obj.compileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probgraph_compile_total",
			Help: "Number of compilations that have run.",
		},
		// errorful: did the compilation fail
		[]string{"errorful"},
	)
	obj.passSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "probgraph_pass_duration_seconds",
			Help:    "Duration of each compiler pass in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		// pass: normalize, ssa, simplify, ...
		[]string{"pass"},
	)
	obj.nodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probgraph_nodes_total",
			Help: "Number of graph nodes that have been created.",
		},
		// kind: sampled, observed, condition or data
		[]string{"kind"},
	)
	obj.processStartTimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "probgraph_process_start_time_seconds",
			Help: "Start time of the process since unix epoch in seconds.",
		},
	)
	for _, c := range []prometheus.Collector{obj.compileTotal, obj.passSeconds, obj.nodesTotal, obj.processStartTimeSeconds} {
		if err := obj.registry.Register(c); err != nil {
			return err
		}
	}
	// directly set the processStartTimeSeconds
	obj.processStartTimeSeconds.SetToCurrentTime()

	// initialize every kind, so that they are exported even when zero
	for _, kind := range []string{KindSampled, KindObserved, KindCondition, KindData} {
		obj.nodesTotal.WithLabelValues(kind)
	}
	return nil
}

// Start runs a http server in a go routine, that responds to /metrics as
// prometheus would expect.
func (obj *Prometheus) Start() error {
	listener, err := net.Listen("tcp", obj.Listen)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(obj.registry, promhttp.HandlerOpts{}))
	obj.server = &http.Server{Handler: mux}
	go obj.server.Serve(listener)
	return nil
}

// Stop the http server.
func (obj *Prometheus) Stop() error {
	if obj.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return obj.server.Shutdown(ctx)
}

// Gatherer returns the registry that holds the metrics.
func (obj *Prometheus) Gatherer() prometheus.Gatherer {
	return obj.registry
}

// WriteTextfile writes the current metrics to a file in the text exposition
// format, as used by the node exporter textfile collector.
func (obj *Prometheus) WriteTextfile(filename string) error {
	if obj.registry == nil {
		return fmt.Errorf("metrics are not initialized")
	}
	return prometheus.WriteToTextfile(filename, obj.registry)
}

// UpdateCompileTotal counts a finished compilation.
func (obj *Prometheus) UpdateCompileTotal(errorful bool) error {
	labels := prometheus.Labels{"errorful": strconv.FormatBool(errorful)}
	metric := obj.compileTotal.With(labels)
	metric.Inc()
	return nil
}

// ObservePass records how long a compiler pass took.
func (obj *Prometheus) ObservePass(pass string, d time.Duration) error {
	obj.passSeconds.WithLabelValues(pass).Observe(d.Seconds())
	return nil
}

// AddNodes counts created graph nodes of a kind.
func (obj *Prometheus) AddNodes(kind string, count int) error {
	switch kind {
	case KindSampled, KindObserved, KindCondition, KindData:
	default:
		return fmt.Errorf("unknown node kind: %s", kind)
	}
	obj.nodesTotal.WithLabelValues(kind).Add(float64(count))
	return nil
}
