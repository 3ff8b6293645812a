package wallet

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordOperationResult(string, string)          {}
func (n *NoopMetricsCollector) RecordCacheHit(string)                         {}
func (n *NoopMetricsCollector) RecordCacheMiss(string)                        {}
func (n *NoopMetricsCollector) RecordBalanceChange(string, int64, int64)      {}
func (n *NoopMetricsCollector) RecordError(string, string)                    {}

// LogMetricsCollector writes metrics as debug log lines.
type LogMetricsCollector struct {
	Logger *logrus.Logger
}

func NewLogMetricsCollector(logger *logrus.Logger) *LogMetricsCollector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogMetricsCollector{Logger: logger}
}

func (m *LogMetricsCollector) RecordOperationDuration(operation string, d time.Duration) {
	m.Logger.WithFields(logrus.Fields{"metric": "duration", "operation": operation, "ms": d.Milliseconds()}).Debug("ledger metric")
}

func (m *LogMetricsCollector) RecordOperationResult(operation, result string) {
	m.Logger.WithFields(logrus.Fields{"metric": "result", "operation": operation, "result": result}).Debug("ledger metric")
}

func (m *LogMetricsCollector) RecordCacheHit(key string) {
	m.Logger.WithFields(logrus.Fields{"metric": "cache_hit", "key": key}).Debug("ledger metric")
}

func (m *LogMetricsCollector) RecordCacheMiss(key string) {
	m.Logger.WithFields(logrus.Fields{"metric": "cache_miss", "key": key}).Debug("ledger metric")
}

func (m *LogMetricsCollector) RecordBalanceChange(userID string, oldBalance, newBalance int64) {
	m.Logger.WithFields(logrus.Fields{
		"metric":  "balance_change",
		"user_id": userID,
		"old":     oldBalance,
		"new":     newBalance,
	}).Debug("ledger metric")
}

func (m *LogMetricsCollector) RecordError(operation, errType string) {
	m.Logger.WithFields(logrus.Fields{"metric": "error", "operation": operation, "kind": errType}).Debug("ledger metric")
}
