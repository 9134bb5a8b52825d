// Package execution writes the per-invocation audit trail every function
// leaves behind.
package execution

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	shared "github.com/peakline/server/pkg"
	"github.com/peakline/server/pkg/types"
)

// ExecutionOptions carries optional metadata for a new execution record.
type ExecutionOptions struct {
	UserID      string
	TriggerType string
}

// LogStart creates a STARTED execution record and returns its id.
func LogStart(ctx context.Context, db shared.Database, serviceName string, opts ExecutionOptions) (string, error) {
	id := uuid.NewString()
	record := &types.ExecutionRecord{
		ExecutionID: id,
		Service:     serviceName,
		UserID:      opts.UserID,
		TriggerType: opts.TriggerType,
		Status:      types.StatusStarted,
		StartedAt:   time.Now(),
	}
	if err := db.SetExecution(ctx, record); err != nil {
		return id, err
	}
	return id, nil
}

// LogSuccess marks the execution finished, attaching handler outputs.
func LogSuccess(ctx context.Context, db shared.Database, id string, outputs interface{}) error {
	return db.UpdateExecution(ctx, id, map[string]interface{}{
		"status":       types.StatusSuccess,
		"outputs_json": marshalOutputs(outputs),
		"finished_at":  time.Now(),
	})
}

// LogFailure marks the execution failed, keeping any partial outputs.
func LogFailure(ctx context.Context, db shared.Database, id string, cause error, outputs interface{}) error {
	return db.UpdateExecution(ctx, id, map[string]interface{}{
		"status":       types.StatusFailure,
		"error":        cause.Error(),
		"outputs_json": marshalOutputs(outputs),
		"finished_at":  time.Now(),
	})
}

func marshalOutputs(outputs interface{}) string {
	if outputs == nil {
		return ""
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return ""
	}
	return string(data)
}
