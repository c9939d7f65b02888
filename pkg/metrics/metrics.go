package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// 进度级联结果
	CascadeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_cascade_count",
			Help: "Progress recomputations by level and outcome",
		},
		[]string{"level", "outcome"}, // level: milestone, project; outcome: updated, retried, conflict, not_found, error
	)

	// 激励结算
	SettlementCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incentive_settlement_count",
			Help: "Pending-to-current incentive movements by outcome",
		},
		[]string{"outcome"}, // moved, already_settled, conflict, error
	)

	// 预付款交易记录
	TransactionRecordCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advance_transaction_record_count",
			Help: "Advance payment transaction recording attempts by outcome",
		},
		[]string{"outcome"}, // recorded, duplicate, no_admin, error
	)

	// 绩效积分
	PointsAwardedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "performance_points_awarded_count",
			Help: "Scoring events appended to the points ledger",
		},
		[]string{"reason"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(operation string, _ time.Duration) {
	SlowQueryCount.WithLabelValues(operation).Inc()
}

func IncrementCascade(level, outcome string) {
	CascadeCount.WithLabelValues(level, outcome).Inc()
}

func IncrementSettlement(outcome string) {
	SettlementCount.WithLabelValues(outcome).Inc()
}

func IncrementTransactionRecord(outcome string) {
	TransactionRecordCount.WithLabelValues(outcome).Inc()
}

func IncrementPointsAwarded(reason string) {
	PointsAwardedCount.WithLabelValues(reason).Inc()
}
