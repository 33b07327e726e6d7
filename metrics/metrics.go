/*
Copyright (C) 2026  ReedCMS Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package metrics exposes every counter and histogram named in the
// specification, on a private prometheus.Registry so multiple
// in-process Registries (as in tests) never collide on the default
// global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Registry bundles every ReedBase metric behind its own prometheus
// registry.
type Registry struct {
	reg *prometheus.Registry

	FrameStartedTotal     prometheus.Counter
	FrameCommittedTotal   prometheus.Counter
	FrameRolledBackTotal  prometheus.Counter
	FrameCrashedTotal     prometheus.Counter
	SetTotal              *prometheus.CounterVec // table
	GetTotal              *prometheus.CounterVec // table, hit|miss
	BackupCreatedTotal    prometheus.Counter
	BackupPruneTotal      prometheus.Counter
	RestoreTotal          prometheus.Counter

	FrameCommitDuration   prometheus.Histogram
	FrameRollbackDuration prometheus.Histogram
	SetDuration           *prometheus.HistogramVec // table
	BackupCompressRatio   prometheus.Histogram
	CacheLoadDuration     *prometheus.HistogramVec // table
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		FrameStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reedbase_frame_started_total",
			Help: "Total number of frames begun.",
		}),
		FrameCommittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reedbase_frame_committed_total",
			Help: "Total number of frames committed.",
		}),
		FrameRolledBackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reedbase_frame_rolled_back_total",
			Help: "Total number of frames rolled back.",
		}),
		FrameCrashedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reedbase_frame_crashed_total",
			Help: "Total number of frames recovered as crashed on startup.",
		}),
		SetTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reedbase_set_total",
			Help: "Total number of set operations by table.",
		}, []string{"table"}),
		GetTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reedbase_get_total",
			Help: "Total number of get operations by table and hit/miss.",
		}, []string{"table", "result"}),
		BackupCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reedbase_backup_created_total",
			Help: "Total number of backups created.",
		}),
		BackupPruneTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reedbase_backup_prune_total",
			Help: "Total number of backup prune passes run.",
		}),
		RestoreTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reedbase_restore_total",
			Help: "Total number of restore operations (backup or point-in-time).",
		}),
		FrameCommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reedbase_frame_commit_duration_seconds",
			Help:    "Duration of frame commit operations.",
			Buckets: prometheus.DefBuckets,
		}),
		FrameRollbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reedbase_frame_rollback_duration_seconds",
			Help:    "Duration of frame rollback operations.",
			Buckets: prometheus.DefBuckets,
		}),
		SetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reedbase_set_duration_seconds",
			Help:    "Duration of set operations by table.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table"}),
		BackupCompressRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reedbase_backup_compress_ratio",
			Help:    "Ratio of uncompressed to compressed backup size.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		CacheLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reedbase_cache_load_duration_seconds",
			Help:    "Duration of cold cache load (CSV parse + map build) by table.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table"}),
	}
	reg.MustRegister(
		r.FrameStartedTotal, r.FrameCommittedTotal, r.FrameRolledBackTotal, r.FrameCrashedTotal,
		r.SetTotal, r.GetTotal, r.BackupCreatedTotal, r.BackupPruneTotal, r.RestoreTotal,
		r.FrameCommitDuration, r.FrameRollbackDuration, r.SetDuration, r.BackupCompressRatio, r.CacheLoadDuration,
	)
	return r
}

// Handler exposes the registry for an embedding HTTP server to mount;
// ReedBase itself never listens on a socket (the HTTP server is out of
// scope per the specification).
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gather returns the registry's current metric families, letting a
// health check inspect histogram buckets (e.g. to approximate
// set_duration_seconds' p95) without exposing the raw
// prometheus.Registry.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
