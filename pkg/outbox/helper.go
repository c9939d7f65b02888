package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"workledger/pkg/trace"
)

// InsertEventInTx 在事务中插入事件到 outbox，payload 会附带 trace_id
func InsertEventInTx(
	ctx context.Context,
	tx pgx.Tx,
	repo *Repository,
	aggregateType string,
	aggregateID int64,
	routingKey string,
	payload interface{},
) error {
	payloadJSON, err := encodePayload(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", routingKey, err)
	}

	return repo.InsertEvent(ctx, tx, &Event{
		AggregateType: aggregateType,
		AggregateID:   &aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	})
}

func encodePayload(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return raw, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// 非对象 payload，原样返回
		return raw, nil
	}
	if _, ok := fields["trace_id"]; !ok {
		fields["trace_id"], _ = json.Marshal(traceID)
	}
	return json.Marshal(fields)
}

// traceIDOf 从 payload 中提取 trace_id（如果存在）
func traceIDOf(payload json.RawMessage) string {
	var fields struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	return fields.TraceID
}
