// Copyright (c) 2023 Paweł Gaczyński
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package urio

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	stageSQMuWait   = "sq_mu_wait"
	stageSQMuHold   = "sq_mu_hold"
	stageGetSQE     = "get_sqe"
	stageEnterSQE   = "enter_sqe"
	stageEnterCQE   = "enter_cqe"
	stageReapReady  = "reap_ready"
	stageTicketPop  = "ticket_queue_pop"
	stageTicketPush = "ticket_queue_push"
	stageWait       = "wait"
)

// profile collects per-stage latency histograms on a private prometheus
// registry. Disabled profiles observe nothing and cost a flag check.
type profile struct {
	enabled  bool
	registry *prometheus.Registry
	stages   *prometheus.HistogramVec
}

func newProfile(enabled bool) *profile {
	p := &profile{enabled: enabled}
	if !enabled {
		return p
	}

	p.registry = prometheus.NewRegistry()
	p.stages = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "urio_stage_duration_seconds",
		Help:    "Time spent in each stage of the submission and completion path.",
		Buckets: prometheus.ExponentialBuckets(100e-9, 2, 28),
	}, []string{"stage"})
	p.registry.MustRegister(p.stages)

	return p
}

// measure starts timing a stage; the returned func records the elapsed time.
func (p *profile) measure(stage string) func() {
	if !p.enabled {
		return func() {}
	}

	start := time.Now()

	return func() {
		p.stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// print renders the gathered histograms as a table: count, mean and
// estimated percentiles per stage.
func (p *profile) print(w io.Writer) error {
	if !p.enabled {
		return nil
	}

	families, err := p.registry.Gather()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-18s %10s %12s %12s %12s %12s %12s\n",
		"stage", "count", "avg", "p50", "p90", "p99", "p999")

	for _, family := range families {
		metrics := family.GetMetric()
		sort.Slice(metrics, func(i, j int) bool {
			return metricStage(metrics[i]) < metricStage(metrics[j])
		})

		for _, metric := range metrics {
			histogram := metric.GetHistogram()
			count := histogram.GetSampleCount()
			if count == 0 {
				continue
			}

			avg := histogram.GetSampleSum() / float64(count)
			fmt.Fprintf(w, "%-18s %10d %12s %12s %12s %12s %12s\n",
				metricStage(metric),
				count,
				formatSeconds(avg),
				formatSeconds(estimateQuantile(histogram, 0.50)),
				formatSeconds(estimateQuantile(histogram, 0.90)),
				formatSeconds(estimateQuantile(histogram, 0.99)),
				formatSeconds(estimateQuantile(histogram, 0.999)),
			)
		}
	}

	return nil
}

func metricStage(metric *dto.Metric) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == "stage" {
			return label.GetValue()
		}
	}

	return ""
}

// estimateQuantile returns the upper bound of the first bucket whose
// cumulative count reaches the quantile.
func estimateQuantile(histogram *dto.Histogram, quantile float64) float64 {
	target := quantile * float64(histogram.GetSampleCount())

	for _, bucket := range histogram.GetBucket() {
		if float64(bucket.GetCumulativeCount()) >= target {
			return bucket.GetUpperBound()
		}
	}

	if buckets := histogram.GetBucket(); len(buckets) > 0 {
		return buckets[len(buckets)-1].GetUpperBound()
	}

	return 0
}

func formatSeconds(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).String()
}
