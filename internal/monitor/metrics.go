package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/holygeek00/lite-wanmon/pkg/models"
)

const metricsNamespace = "wanmon"

// 周期结果标签
const (
	cycleResultOK          = "ok"
	cycleResultSourceError = "source_error"
)

// Metrics 监控指标，方法对 nil 接收者安全
type Metrics struct {
	Registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	loss          *prometheus.GaugeVec
	average       *prometheus.GaugeVec
	breachCount   *prometheus.GaugeVec
	fullLossCount *prometheus.GaugeVec
	remediations  *prometheus.CounterVec
	readingErrors *prometheus.CounterVec
}

// NewMetrics 创建并注册监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Monitoring cycles by result.",
		}, []string{"result"}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "loss_percent",
			Help:      "Packet loss reported in the latest reading.",
		}, []string{"wan"}),
		average: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sliding_average_loss_percent",
			Help:      "Sliding average of recent loss readings.",
		}, []string{"wan"}),
		breachCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "breach_count",
			Help:      "Consecutive readings above the loss threshold.",
		}, []string{"wan"}),
		fullLossCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "full_loss_count",
			Help:      "Consecutive readings at 100% loss.",
		}, []string{"wan"}),
		remediations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remediations_total",
			Help:      "Remediation commands run, by action and result.",
		}, []string{"wan", "action", "result"}),
		readingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reading_errors_total",
			Help:      "Readings skipped because the WAN was missing or the value was invalid.",
		}, []string{"wan", "kind"}),
	}

	reg.MustRegister(
		m.cycles,
		m.loss,
		m.average,
		m.breachCount,
		m.fullLossCount,
		m.remediations,
		m.readingErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCycle 记录一个周期
func (m *Metrics) ObserveCycle(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

// ObserveDecision 记录读数和判定时的计数
func (m *Metrics) ObserveDecision(r models.Reading, d models.Decision) {
	if m == nil {
		return
	}
	m.loss.WithLabelValues(r.WanID).Set(r.LossPercent)
	m.average.WithLabelValues(r.WanID).Set(d.Average)
	if d.Fired() {
		m.breachCount.WithLabelValues(r.WanID).Set(0)
		m.fullLossCount.WithLabelValues(r.WanID).Set(0)
		return
	}
	m.breachCount.WithLabelValues(r.WanID).Set(float64(d.BreachCount))
	m.fullLossCount.WithLabelValues(r.WanID).Set(float64(d.FullLossCount))
}

// ObserveRemediation 记录一次修复动作
func (m *Metrics) ObserveRemediation(wanID string, action models.Action, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.remediations.WithLabelValues(wanID, string(action), result).Inc()
}

// ObserveReadingError 记录一次被跳过的读数
func (m *Metrics) ObserveReadingError(wanID, kind string) {
	if m == nil {
		return
	}
	m.readingErrors.WithLabelValues(wanID, kind).Inc()
}
