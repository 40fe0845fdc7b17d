// Package metrics 以Prometheus指标的形式暴露Job的运行统计
package metrics

import (
	"context"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "job_scheduler"
	Subsystem = "job"
)

// Sink 实现StatisticSink，记录慢执行
type Sink struct {
	SlowRunsTotal   *prometheus.CounterVec
	SlowRunDuration *prometheus.HistogramVec
}

func NewSink(reg prometheus.Registerer) *Sink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	return &Sink{
		SlowRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "slow_runs_total",
			Help:      "Number of job runs that exceeded the long operation threshold",
		}, []string{"job"}),
		SlowRunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "slow_run_duration_seconds",
			Help:      "Duration of job runs that exceeded the long operation threshold",
			Buckets:   []float64{30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"job"}),
	}
}

func (s *Sink) AddJobStats(_ context.Context, jobName string, start, end time.Time, _ int64) error {
	s.SlowRunsTotal.WithLabelValues(jobName).Inc()
	s.SlowRunDuration.WithLabelValues(jobName).Observe(end.Sub(start).Seconds())
	return nil
}

// JobLister 提供需要暴露指标的Job
type JobLister interface {
	List() []*job_scheduler.Job
}

// JobCollector 每次抓取时从Job读取统计
type JobCollector struct {
	lister JobLister

	runs       *prometheus.Desc
	total      *prometheus.Desc
	last       *prometheus.Desc
	average    *prometheus.Desc
	paused     *prometheus.Desc
	running    *prometheus.Desc
	started    *prometheus.Desc
	lastFinish *prometheus.Desc
}

func NewJobCollector(lister JobLister) *JobCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, Subsystem, name), help, []string{"job"}, nil)
	}
	return &JobCollector{
		lister:     lister,
		runs:       desc("runs_total", "Number of times the job has run during the lifetime of the process"),
		total:      desc("execution_milliseconds_total", "Total time the job spent in execution"),
		last:       desc("last_execution_milliseconds", "Time the job spent in execution during its last run"),
		average:    desc("average_execution_milliseconds", "Average time the job spent in execution"),
		paused:     desc("paused", "1 if the job is paused"),
		running:    desc("running", "1 if the job is running"),
		started:    desc("started", "1 if the job is scheduled"),
		lastFinish: desc("last_finish_timestamp_seconds", "Unix time the job last completed execution"),
	}
}

func (c *JobCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runs
	ch <- c.total
	ch <- c.last
	ch <- c.average
	ch <- c.paused
	ch <- c.running
	ch <- c.started
	ch <- c.lastFinish
}

func (c *JobCollector) Collect(ch chan<- prometheus.Metric) {
	for _, job := range c.lister.List() {
		s := job.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(s.NumberOfRuns), s.Name)
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(s.TotalExecutionTimeMs), s.Name)
		ch <- prometheus.MustNewConstMetric(c.last, prometheus.GaugeValue, float64(s.LastExecutionTimeMs), s.Name)
		ch <- prometheus.MustNewConstMetric(c.average, prometheus.GaugeValue, float64(s.AverageExecutionTimeMs), s.Name)
		ch <- prometheus.MustNewConstMetric(c.paused, prometheus.GaugeValue, boolValue(s.Paused), s.Name)
		ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, boolValue(s.Running), s.Name)
		ch <- prometheus.MustNewConstMetric(c.started, prometheus.GaugeValue, boolValue(s.Started), s.Name)
		if s.LastFinishTime != nil {
			ch <- prometheus.MustNewConstMetric(c.lastFinish, prometheus.GaugeValue,
				float64(s.LastFinishTime.UnixMilli())/1000, s.Name)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
