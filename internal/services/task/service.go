// Package task manages per-user social tasks and one-shot quest
// rewards.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yangsenessa/univoice-dapp/internal/domain/reward"
	"github.com/yangsenessa/univoice-dapp/internal/domain/task"
	"github.com/yangsenessa/univoice-dapp/internal/metrics"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// ErrTaskFinished is returned when a finished task is finished again.
var ErrTaskFinished = errors.New("task already finished")

// ErrUnknownTask is returned when a status update names a task the user
// does not have.
var ErrUnknownTask = errors.New("task does not exist")

// Service manages tasks and quests.
type Service struct {
	tasks    storage.TaskStore
	rewards  storage.RewardStore
	profiles storage.ProfileStore
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// New constructs a task service.
func New(tasks storage.TaskStore, rewards storage.RewardStore, profiles storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("task")
	}
	return &Service{tasks: tasks, rewards: rewards, profiles: profiles, log: log}
}

// SetMetrics enables reward counters. Call before serving requests.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// EnsureDefaultQuests seeds any quest missing from storage. Quests
// already present, completed or not, are left alone.
func (s *Service) EnsureDefaultQuests(ctx context.Context) error {
	for _, q := range task.DefaultQuests() {
		_, err := s.tasks.GetQuest(ctx, q.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := s.tasks.PutQuest(ctx, q); err != nil {
			return fmt.Errorf("seed quest %d: %w", q.ID, err)
		}
	}
	return nil
}

// GetUserTasks returns the user's task list, seeding the defaults on
// first access.
func (s *Service) GetUserTasks(ctx context.Context, principal string) ([]task.Task, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return nil, fmt.Errorf("principal is required")
	}

	tasks, err := s.tasks.GetUserTasks(ctx, principal)
	if err == nil {
		return tasks, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	tasks = task.Defaults()
	for i := range tasks {
		tasks[i].CreatedAt = now
		tasks[i].UpdatedAt = now
	}
	if err := s.tasks.PutUserTasks(ctx, principal, tasks); err != nil {
		return nil, err
	}
	s.log.WithField("principal", principal).Info("default tasks seeded")
	return tasks, nil
}

// UpdateTaskStatus transitions one task. Entering the finished state is
// one-shot and writes exactly one task reward record.
func (s *Service) UpdateTaskStatus(ctx context.Context, principal, taskID, status string) (task.Task, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return task.Task{}, fmt.Errorf("status is required")
	}

	tasks, err := s.GetUserTasks(ctx, principal)
	if err != nil {
		return task.Task{}, err
	}

	idx := -1
	for i := range tasks {
		if tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return task.Task{}, ErrUnknownTask
	}
	if tasks[idx].Status == task.StatusFinished {
		return task.Task{}, ErrTaskFinished
	}

	tasks[idx].Status = status
	tasks[idx].UpdatedAt = time.Now().UTC()
	if err := s.tasks.PutUserTasks(ctx, principal, tasks); err != nil {
		return task.Task{}, err
	}

	if status == task.StatusFinished {
		rec := reward.TaskRecord{
			ID:        fmt.Sprintf("%s_%d", taskID, time.Now().UnixNano()),
			Principal: principal,
			TaskID:    taskID,
			Amount:    tasks[idx].Reward,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.rewards.CreateTaskRecord(ctx, rec); err != nil {
			return task.Task{}, fmt.Errorf("record task reward: %w", err)
		}
		if s.metrics != nil {
			s.metrics.RecordRewardIssued("task")
		}
		s.log.WithField("principal", principal).
			WithField("task_id", taskID).
			WithField("amount", rec.Amount).
			Info("task finished")
	}
	return tasks[idx], nil
}

// ClaimQuestReward credits a quest's reward to the user's profile. It
// returns false, without changing anything, for unknown quests, quests
// already claimed, and users without a profile.
func (s *Service) ClaimQuestReward(ctx context.Context, principal string, questID uint64) (bool, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return false, fmt.Errorf("principal is required")
	}

	q, err := s.tasks.GetQuest(ctx, questID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if q.Completed {
		return false, nil
	}

	p, err := s.profiles.GetProfileByPrincipal(ctx, principal)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	q.Completed = true
	q.ClaimedBy = principal
	q.ClaimedAt = time.Now().UTC()
	if err := s.tasks.PutQuest(ctx, q); err != nil {
		return false, err
	}

	p.TotalRewards += q.Reward
	p.UpdatedAt = time.Now().UTC()
	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		// The quest is consumed; surface the missing credit loudly.
		s.log.WithError(err).
			WithField("principal", principal).
			WithField("quest_id", questID).
			Error("quest consumed but profile credit failed")
		return false, err
	}

	if s.metrics != nil {
		s.metrics.RecordRewardIssued("quest")
	}
	s.log.WithField("principal", principal).
		WithField("quest_id", questID).
		WithField("reward", q.Reward).
		Info("quest reward claimed")
	return true, nil
}

// ListQuests returns every quest with its completion state.
func (s *Service) ListQuests(ctx context.Context) ([]task.Quest, error) {
	return s.tasks.ListQuests(ctx)
}
