// Package scheduler runs background jobs over asynq: the periodic score
// decay sweep and any one-off sweeps enqueued by operators.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskScoreDecay = "leads:score_decay"

// ScoreDecayPayload optionally narrows a sweep to one tenant. An empty
// TenantID sweeps everyone.
type ScoreDecayPayload struct {
	TenantID string `json:"tenantId,omitempty"`
}

func NewScoreDecayTask(payload ScoreDecayPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreDecay, data), nil
}

func ParseScoreDecayPayload(task *asynq.Task) (ScoreDecayPayload, error) {
	var payload ScoreDecayPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreDecayPayload{}, err
	}
	return payload, nil
}
