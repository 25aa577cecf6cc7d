// Package task defines per-user social tasks and one-shot quests.
package task

import "time"

// StatusFinished marks a task whose reward has been granted. The
// transition into it is one-shot.
const StatusFinished = "finished"

// StatusPending is the state tasks are seeded in.
const StatusPending = "pending"

// Task is one social action a user can complete for a reward.
type Task struct {
	ID        string    `json:"task_id"`
	URL       string    `json:"task_url"`
	Reward    uint64    `json:"reward"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Defaults returns the task list seeded for a user on first access.
func Defaults() []Task {
	return []Task{
		{ID: "Follow_X", URL: "https://x.com/UNIVOICE_", Reward: 5000, Status: StatusPending},
		{ID: "Follow_TG_Community", URL: "https://t.me/univoiceofficial", Reward: 5000, Status: StatusPending},
		{ID: "Follow_TG_Channel", URL: "https://t.me/+S3WQWidjW9lkZTU1", Reward: 5000, Status: StatusPending},
		{ID: "Follow_YouTuBe", URL: "", Reward: 5000, Status: StatusPending},
	}
}

// Quest is a global one-shot reward credited straight to the profile's
// running total.
type Quest struct {
	ID          uint64    `json:"quest_id"`
	Name        string    `json:"quest_name"`
	RedirectURL string    `json:"redirect_url"`
	Reward      uint64    `json:"reward"`
	Completed   bool      `json:"completed"`
	ClaimedBy   string    `json:"claimed_by,omitempty"`
	ClaimedAt   time.Time `json:"claimed_at,omitempty"`
}

// DefaultQuests returns the quests seeded into a fresh deployment.
func DefaultQuests() []Quest {
	return []Quest{
		{ID: 1, Name: "Follow Twitter", RedirectURL: "https://twitter.com/official", Reward: 5000},
		{ID: 2, Name: "Join Telegram", RedirectURL: "https://t.me/official", Reward: 3000},
	}
}
