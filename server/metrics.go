package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 运行期指标，注册在私有 Registry 上，避免多实例（测试）冲突
type Metrics struct {
	Registry *prometheus.Registry

	Ticks        prometheus.Counter   // 已执行的 tick 数
	TickDuration prometheus.Histogram // 单次 tick 耗时
	LateTicks    prometheus.Counter   // 因调度延迟错过的边界总数
	CatchUp      prometheus.Gauge     // 最近一次 tick 覆盖的边界数
	Connections  prometheus.Gauge
	Entities     prometheus.Gauge
	Patches      *prometheus.CounterVec // result=applied|skipped
	Saves        *prometheus.CounterVec // result=ok|failed
	Rejects      *prometheus.CounterVec // reason=protocol|auth

	httpDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	const ns = "webgame"
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "ticks_total", Help: "Simulation ticks executed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "tick_duration_seconds", Help: "Wall time spent inside one tick.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		LateTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "late_ticks_total", Help: "Tick boundaries missed because the loop fired late.",
		}),
		CatchUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "tick_catchup", Help: "Boundaries covered by the last tick.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "connections", Help: "Connections in the connection table.",
		}),
		Entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "entities", Help: "Entities in the world.",
		}),
		Patches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "patches_total", Help: "Player action patches drained from connections.",
		}, []string{"result"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "saves_total", Help: "World saves completed by the store.",
		}, []string{"result"}),
		Rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "conn_rejects_total", Help: "Connections closed for protocol or authentication errors.",
		}, []string{"reason"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "http_request_duration_seconds", Help: "HTTP request duration.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "path", "status"}),
	}
	m.Registry.MustRegister(
		m.Ticks, m.TickDuration, m.LateTicks, m.CatchUp,
		m.Connections, m.Entities, m.Patches, m.Saves, m.Rejects, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// AddTick 记录一次 tick
func (m *Metrics) AddTick(elapsed time.Duration, boundaries int) {
	m.Ticks.Inc()
	m.TickDuration.Observe(elapsed.Seconds())
	m.CatchUp.Set(float64(boundaries))
	if boundaries > 1 {
		m.LateTicks.Add(float64(boundaries - 1))
	}
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// Middleware HTTP 请求耗时；websocket 升级后的长连接不计入
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.IsWebsocket() {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpDuration.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
