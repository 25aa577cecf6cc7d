package task

import (
	"context"
	"errors"
	"testing"

	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/task"
	"github.com/yangsenessa/univoice-dapp/internal/storage/memory"
)

func newService(store *memory.Store) *Service {
	return New(store, store, store, nil)
}

func TestService_GetUserTasksSeedsDefaults(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	tasks, err := svc.GetUserTasks(ctx, "dapp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("seeded %d tasks", len(tasks))
	}
	for _, tk := range tasks {
		if tk.Status != task.StatusPending {
			t.Fatalf("task %s seeded as %q", tk.ID, tk.Status)
		}
		if tk.Reward != 5000 {
			t.Fatalf("task %s reward %d", tk.ID, tk.Reward)
		}
		if tk.CreatedAt.IsZero() {
			t.Fatalf("task %s missing timestamps", tk.ID)
		}
	}

	// The second read returns the stored list, not a fresh seed.
	again, err := svc.GetUserTasks(ctx, "dapp-1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if len(again) != 4 || !again[0].CreatedAt.Equal(tasks[0].CreatedAt) {
		t.Fatalf("list reseeded: %+v", again)
	}
}

func TestService_UpdateTaskStatusFinishOnce(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	updated, err := svc.UpdateTaskStatus(ctx, "dapp-1", "Follow_X", task.StatusFinished)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if updated.Status != task.StatusFinished {
		t.Fatalf("status: %q", updated.Status)
	}

	recs, err := store.ListTaskRecordsByUser(ctx, "dapp-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(recs) != 1 || recs[0].Amount != 5000 || recs[0].TaskID != "Follow_X" {
		t.Fatalf("reward record: %+v", recs)
	}

	// Finishing a finished task is rejected and writes nothing.
	if _, err := svc.UpdateTaskStatus(ctx, "dapp-1", "Follow_X", task.StatusFinished); !errors.Is(err, ErrTaskFinished) {
		t.Fatalf("expected finished error, got %v", err)
	}
	recs, _ = store.ListTaskRecordsByUser(ctx, "dapp-1")
	if len(recs) != 1 {
		t.Fatalf("duplicate reward record written: %d", len(recs))
	}

	if _, err := svc.UpdateTaskStatus(ctx, "dapp-1", "Nope", task.StatusFinished); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected unknown task, got %v", err)
	}
}

func TestService_UpdateTaskStatusIntermediate(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	updated, err := svc.UpdateTaskStatus(ctx, "dapp-1", "Follow_TG_Channel", "in_progress")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != "in_progress" {
		t.Fatalf("status: %q", updated.Status)
	}

	// Intermediate states write no reward record.
	recs, _ := store.ListTaskRecordsByUser(ctx, "dapp-1")
	if len(recs) != 0 {
		t.Fatalf("reward written for intermediate state: %+v", recs)
	}
}

func TestService_EnsureDefaultQuests(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	if err := svc.EnsureDefaultQuests(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	quests, err := svc.ListQuests(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quests) != 2 || quests[0].Reward != 5000 || quests[1].Reward != 3000 {
		t.Fatalf("quests: %+v", quests)
	}
	if quests[0].Name != "Follow Twitter" || quests[0].RedirectURL != "https://twitter.com/official" {
		t.Fatalf("first quest metadata: %+v", quests[0])
	}
	if quests[1].Name != "Join Telegram" || quests[1].RedirectURL != "https://t.me/official" {
		t.Fatalf("second quest metadata: %+v", quests[1])
	}

	// A completed quest is not reset by reseeding.
	q := quests[0]
	q.Completed = true
	q.ClaimedBy = "dapp-1"
	if err := store.PutQuest(ctx, q); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := svc.EnsureDefaultQuests(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	got, err := store.GetQuest(ctx, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Completed || got.ClaimedBy != "dapp-1" {
		t.Fatalf("reseed reset a completed quest: %+v", got)
	}
}

func TestService_ClaimQuestReward(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	if err := store.CreateProfile(ctx, profile.Profile{DappPrincipal: "dapp-1"}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if err := svc.EnsureDefaultQuests(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	granted, err := svc.ClaimQuestReward(ctx, "dapp-1", 1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !granted {
		t.Fatal("claim not granted")
	}

	p, err := store.GetProfileByPrincipal(ctx, "dapp-1")
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if p.TotalRewards != 5000 {
		t.Fatalf("rewards not credited: %d", p.TotalRewards)
	}

	// A claimed quest stays claimed, for anyone.
	granted, err = svc.ClaimQuestReward(ctx, "dapp-1", 1)
	if err != nil || granted {
		t.Fatalf("second claim: granted=%v err=%v", granted, err)
	}

	// Unknown quest and unknown profile both decline quietly.
	granted, err = svc.ClaimQuestReward(ctx, "dapp-1", 99)
	if err != nil || granted {
		t.Fatalf("unknown quest: granted=%v err=%v", granted, err)
	}
	granted, err = svc.ClaimQuestReward(ctx, "ghost", 2)
	if err != nil || granted {
		t.Fatalf("unknown profile: granted=%v err=%v", granted, err)
	}
	q, err := store.GetQuest(ctx, 2)
	if err != nil {
		t.Fatalf("get quest 2: %v", err)
	}
	if q.Completed {
		t.Fatal("declined claim consumed the quest")
	}
}
