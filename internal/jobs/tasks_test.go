package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingManager struct {
	tasks []*asynq.Task
	err   error
}

func (m *recordingManager) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func (m *recordingManager) Close() error { return nil }

func TestNewSessionSweepTask(t *testing.T) {
	testCases := []struct {
		name      string
		maxIdle   time.Duration
		batch     int
		wantBatch int
		wantErr   bool
	}{
		{name: "explicit batch", maxIdle: time.Hour, batch: 10, wantBatch: 10},
		{name: "default batch", maxIdle: time.Hour, wantBatch: DefaultSweepBatch},
		{name: "no idle period", maxIdle: 0, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			task, err := NewSessionSweepTask(tc.maxIdle, tc.batch)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskTypeSessionSweep, task.Type())

			var payload SessionSweepPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &payload))
			assert.Equal(t, tc.maxIdle, payload.MaxIdle)
			assert.Equal(t, tc.wantBatch, payload.Batch)
		})
	}
}

func TestRevokeLater(t *testing.T) {
	m := &recordingManager{}
	revoke := RevokeLater(m)

	require.NoError(t, revoke(context.Background(), "sess_1"))
	require.Len(t, m.tasks, 1)
	assert.Equal(t, TaskTypeSessionRevoke, m.tasks[0].Type())
	assert.JSONEq(t, `{"session_id":"sess_1"}`, string(m.tasks[0].Payload()))

	assert.Error(t, revoke(context.Background(), ""))

	m.err = errors.New("redis down")
	assert.ErrorIs(t, revoke(context.Background(), "sess_2"), m.err)
}
