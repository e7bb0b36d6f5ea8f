package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Checkpoint wraps a serialized session document with resume bookkeeping.
type Checkpoint struct {
	ID             string          `json:"id"`
	Step           string          `json:"step,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	ResumeCount    int             `json:"resume_count"`
	LastResumeTime *time.Time      `json:"last_resume_time,omitempty"`
	State          json.RawMessage `json:"state"`
}

type CheckpointManager struct {
	storage Storage
	logger  *slog.Logger
}

func NewCheckpointManager(storage Storage) *CheckpointManager {
	return &CheckpointManager{
		storage: storage,
		logger:  slog.Default().With("component", "checkpoint"),
	}
}

func checkpointPath(id string) string {
	return fmt.Sprintf("sessions/%s.json", id)
}

// Save stores state for id, keeping the resume history of any earlier
// checkpoint. step names the last completed step.
func (cm *CheckpointManager) Save(ctx context.Context, id, step string, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	checkpoint := &Checkpoint{ID: id}
	if prev, err := cm.Load(ctx, id); err == nil {
		checkpoint.ResumeCount = prev.ResumeCount
		checkpoint.LastResumeTime = prev.LastResumeTime
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	checkpoint.Step = step
	checkpoint.Timestamp = time.Now().UTC()
	checkpoint.State = raw

	if err := cm.write(ctx, checkpoint); err != nil {
		return err
	}
	cm.logger.Debug("checkpoint saved", "session_id", id, "step", step, "bytes", len(raw))
	return nil
}

func (cm *CheckpointManager) write(ctx context.Context, checkpoint *Checkpoint) error {
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	return cm.storage.Save(ctx, checkpointPath(checkpoint.ID), data)
}

func (cm *CheckpointManager) Load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := cm.storage.Load(ctx, checkpointPath(id))
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("unmarshaling checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// LoadState decodes the stored state for id into target.
func (cm *CheckpointManager) LoadState(ctx context.Context, id string, target any) (*Checkpoint, error) {
	checkpoint, err := cm.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(checkpoint.State, target); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	return checkpoint, nil
}

// MarkAsResumed records that the session was picked up again.
func (cm *CheckpointManager) MarkAsResumed(ctx context.Context, id string) error {
	checkpoint, err := cm.Load(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	checkpoint.LastResumeTime = &now
	checkpoint.ResumeCount++
	return cm.write(ctx, checkpoint)
}

// List returns every readable checkpoint, skipping corrupt ones.
func (cm *CheckpointManager) List(ctx context.Context) ([]*Checkpoint, error) {
	files, err := cm.storage.List(ctx, "sessions/*.json")
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}

	var checkpoints []*Checkpoint
	for _, file := range files {
		data, err := cm.storage.Load(ctx, file)
		if err != nil {
			cm.logger.Warn("skipping unreadable checkpoint", "path", file, "error", err)
			continue
		}
		var checkpoint Checkpoint
		if err := json.Unmarshal(data, &checkpoint); err != nil {
			cm.logger.Warn("skipping corrupt checkpoint", "path", file, "error", err)
			continue
		}
		checkpoints = append(checkpoints, &checkpoint)
	}
	return checkpoints, nil
}

func (cm *CheckpointManager) Delete(ctx context.Context, id string) error {
	return cm.storage.Delete(ctx, checkpointPath(id))
}
