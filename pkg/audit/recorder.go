package audit

import (
	"github.com/hacluster/pcsd/pkg/task"
)

// RecordFromTask builds a Record from a finished task. Callers should
// only pass tasks in state Finished; the scheduler is the only caller.
func RecordFromTask(t *task.Task) Record {
	finishedAt, ok := t.LastActivityAt()
	if !ok {
		finishedAt = t.CreatedAt()
	}
	return Record{
		TaskID:        t.ID(),
		Command:       t.Command().Name,
		AuthUser:      t.AuthUser().Username,
		State:         t.State(),
		FinishType:    t.ToDTO().TaskFinishType,
		KillReason:    t.ToDTO().KillReason,
		CorrelationID: t.Command().Options.CorrelationID,
		CreatedAt:     t.CreatedAt(),
		FinishedAt:    finishedAt,
	}
}
