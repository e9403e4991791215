package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		SequenceDuration, SequenceTotal,
		StepDuration, StepFailTotal, RecoveryTotal, BreakerTripTotal,
		SnapshotOpsTotal, SnapshotEvictTotal,
		PlannerRequestTotal, RateLimitWait,
		ActiveSessions,
	)
}

// SequenceDuration 工具序列执行耗时（秒）
var SequenceDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orchestrator_sequence_duration_seconds",
		Help:    "工具序列执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"state"},
)

// SequenceTotal 序列执行总数（按终态）
var SequenceTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orchestrator_sequence_total",
		Help: "序列执行总数（按终态）",
	},
	[]string{"state"}, // succeeded | failed | circuit_broken | cancelled
)

// StepDuration 单个工具调用耗时（秒）
var StepDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orchestrator_step_duration_seconds",
		Help:    "单个工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// StepFailTotal 工具调用失败数（按错误类别）
var StepFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orchestrator_step_fail_total",
		Help: "工具调用失败总数",
	},
	[]string{"tool", "kind"},
)

// RecoveryTotal 插入恢复调用的次数
var RecoveryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orchestrator_recovery_total",
		Help: "恢复调用插入次数",
	},
	[]string{"tool"},
)

// BreakerTripTotal 熔断次数
var BreakerTripTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orchestrator_breaker_trip_total",
		Help: "熔断触发次数",
	},
)

// SnapshotOpsTotal 快照操作数
var SnapshotOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orchestrator_snapshot_ops_total",
		Help: "快照操作总数",
	},
	[]string{"op"}, // capture | diff | revert
)

// SnapshotEvictTotal LRU 淘汰的快照数
var SnapshotEvictTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orchestrator_snapshot_evict_total",
		Help: "LRU 淘汰的快照数",
	},
)

// PlannerRequestTotal 规划器请求数（按结果）
var PlannerRequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orchestrator_planner_request_total",
		Help: "规划器请求总数",
	},
	[]string{"planner", "result"}, // result: ok | retry | error
)

// RateLimitWait 工具限流等待耗时（秒）
var RateLimitWait = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orchestrator_rate_limit_wait_seconds",
		Help:    "工具限流等待耗时（秒）",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"tool"},
)

// ActiveSessions 当前会话数
var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orchestrator_active_sessions",
		Help: "当前会话数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
