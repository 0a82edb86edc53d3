package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	BytesReceived   prometheus.Counter
	FrameTotal      *prometheus.CounterVec // labels: result=ok|crc_error
	ResyncDropTotal prometheus.Counter     // 重同步丢弃的字节数
	SampleTotal     prometheus.Counter     // 解码出的采样数
	AnalysisTotal   prometheus.Counter     // 完成的频谱分析次数
	RelaxationGauge prometheus.Gauge       // 最近一次放松度
	AttentionGauge  prometheus.Gauge       // 最近一次专注度
	MeditatingGauge prometheus.Gauge       // 冥想状态 (0/1)
	SnapshotStreams prometheus.Gauge       // 活跃 websocket 推送数
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_bytes_received_total",
			Help: "Total bytes received from the acquisition transport.",
		}),
		FrameTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frame_decode_total",
			Help: "Frame decode attempts by result.",
		}, []string{"result"}),
		ResyncDropTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frame_resync_dropped_bytes_total",
			Help: "Bytes dropped during decoder resynchronization.",
		}),
		SampleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "samples_decoded_total",
			Help: "Calibrated samples decoded from data frames.",
		}),
		AnalysisTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectral_analysis_total",
			Help: "Completed spectral analysis passes.",
		}),
		RelaxationGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metrics_relaxation",
			Help: "Latest relaxation index.",
		}),
		AttentionGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metrics_attention",
			Help: "Latest attention index.",
		}),
		MeditatingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metrics_meditating",
			Help: "Whether the latest pass classified as meditating.",
		}),
		SnapshotStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_stream_clients",
			Help: "Active websocket snapshot stream clients.",
		}),
	}
	reg.MustRegister(m.BytesReceived, m.FrameTotal, m.ResyncDropTotal, m.SampleTotal,
		m.AnalysisTotal, m.RelaxationGauge, m.AttentionGauge, m.MeditatingGauge, m.SnapshotStreams)
	return m
}
