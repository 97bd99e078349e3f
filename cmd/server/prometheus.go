package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/miretskiy/pqcbench/sampler"
)

var sampleLabels = []string{"crypto_mode", "load_profile"}

// promMetrics mirrors the latest streamed sample per crypto mode and load profile
type promMetrics struct {
	txRate          *prometheus.GaugeVec
	latencyAvg      *prometheus.GaugeVec
	latencyP95      *prometheus.GaugeVec
	cpuUtil         *prometheus.GaugeVec
	memUtil         *prometheus.GaugeVec
	blockSize       *prometheus.GaugeVec
	blockCommitTime *prometheus.GaugeVec
	sigGenTime      *prometheus.GaugeVec
	sigVerifyTime   *prometheus.GaugeVec
	samples         *prometheus.CounterVec
	invalidSamples  *prometheus.CounterVec
}

func gauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pqcbench",
		Name:      name,
		Help:      help,
	}, sampleLabels)
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	m := &promMetrics{
		txRate:          gauge("tx_rate_tps", "Transaction throughput of the latest sample"),
		latencyAvg:      gauge("latency_avg_ms", "Average latency of the latest sample"),
		latencyP95:      gauge("latency_p95_ms", "95th percentile latency of the latest sample"),
		cpuUtil:         gauge("cpu_util_percent", "CPU utilisation of the latest sample"),
		memUtil:         gauge("mem_util_percent", "Memory utilisation of the latest sample"),
		blockSize:       gauge("block_size_bytes", "Block size of the latest sample"),
		blockCommitTime: gauge("block_commit_time_ms", "Block commit time of the latest sample"),
		sigGenTime:      gauge("sig_gen_time_us", "Signature generation time of the latest sample"),
		sigVerifyTime:   gauge("sig_verify_time_us", "Signature verification time of the latest sample"),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pqcbench",
			Name:      "samples_total",
			Help:      "Samples streamed",
		}, sampleLabels),
		invalidSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pqcbench",
			Name:      "invalid_samples_total",
			Help:      "Streamed samples that failed validation",
		}, sampleLabels),
	}
	reg.MustRegister(
		m.txRate,
		m.latencyAvg,
		m.latencyP95,
		m.cpuUtil,
		m.memUtil,
		m.blockSize,
		m.blockCommitTime,
		m.sigGenTime,
		m.sigVerifyTime,
		m.samples,
		m.invalidSamples,
	)
	return m
}

func (m *promMetrics) observe(s sampler.Sample, valid bool) {
	labels := prometheus.Labels{"crypto_mode": s.CryptoMode, "load_profile": s.LoadProfile}
	m.txRate.With(labels).Set(s.TxRate)
	m.latencyAvg.With(labels).Set(s.LatencyAvg)
	m.latencyP95.With(labels).Set(s.LatencyP95)
	m.cpuUtil.With(labels).Set(s.CPUUtil)
	m.memUtil.With(labels).Set(s.MemUtil)
	m.blockSize.With(labels).Set(float64(s.BlockSize))
	m.blockCommitTime.With(labels).Set(s.BlockCommitTime)
	m.sigGenTime.With(labels).Set(s.SigGenTime)
	m.sigVerifyTime.With(labels).Set(s.SigVerifyTime)
	m.samples.With(labels).Inc()
	if !valid {
		m.invalidSamples.With(labels).Inc()
	}
}
