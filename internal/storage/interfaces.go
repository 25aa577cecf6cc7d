// Package storage defines the persistence interfaces used by the
// services. Implementations live in the arenastore, memory and postgres
// subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/yangsenessa/univoice-dapp/internal/domain/info"
	"github.com/yangsenessa/univoice-dapp/internal/domain/license"
	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
	"github.com/yangsenessa/univoice-dapp/internal/domain/reward"
	"github.com/yangsenessa/univoice-dapp/internal/domain/task"
	"github.com/yangsenessa/univoice-dapp/internal/domain/voice"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAmbiguousIdentity is returned when a profile lookup's two principals
// resolve to two different existing records.
var ErrAmbiguousIdentity = errors.New("principals resolve to different profiles")

// InfoStore persists configuration entries keyed by name.
type InfoStore interface {
	PutInfo(ctx context.Context, entry info.Entry) error
	GetInfo(ctx context.Context, key string) (info.Entry, error)
	ListInfo(ctx context.Context) ([]info.Entry, error)
}

// ProfileStore persists user profiles, indexed by dapp principal, wallet
// principal and invite code.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) error
	UpdateProfile(ctx context.Context, p profile.Profile) error

	// FindProfile resolves a profile by either identity. Both given and
	// pointing at different records yields ErrAmbiguousIdentity.
	FindProfile(ctx context.Context, dappPrincipal, walletPrincipal string) (profile.Profile, error)
	GetProfileByPrincipal(ctx context.Context, principal string) (profile.Profile, error)
	GetProfileByWallet(ctx context.Context, walletPrincipal string) (profile.Profile, error)
	GetProfileByInviteCode(ctx context.Context, code string) (profile.Profile, error)

	ListProfiles(ctx context.Context, page, pageSize int) (profile.Page, error)
}

// RewardStore persists the invite and task reward ledgers.
type RewardStore interface {
	CreateInviteRecord(ctx context.Context, rec reward.InviteRecord) error
	UpdateInviteRecord(ctx context.Context, rec reward.InviteRecord) error
	ListInviteRecordsByUser(ctx context.Context, principal string) ([]reward.InviteRecord, error)
	ListInviteRecordsByOwner(ctx context.Context, ownerPrincipal string) ([]reward.InviteRecord, error)

	CreateTaskRecord(ctx context.Context, rec reward.TaskRecord) error
	UpdateTaskRecord(ctx context.Context, rec reward.TaskRecord) error
	ListTaskRecordsByUser(ctx context.Context, principal string) ([]reward.TaskRecord, error)
}

// TaskStore persists per-user task lists and global quests.
type TaskStore interface {
	GetUserTasks(ctx context.Context, principal string) ([]task.Task, error)
	PutUserTasks(ctx context.Context, principal string, tasks []task.Task) error

	GetQuest(ctx context.Context, id uint64) (task.Quest, error)
	PutQuest(ctx context.Context, q task.Quest) error
	ListQuests(ctx context.Context) ([]task.Quest, error)
}

// RegistryStore persists the logical-name to canister-id directory.
type RegistryStore interface {
	PutMapping(ctx context.Context, m registry.Mapping) error
	GetMapping(ctx context.Context, name string) (registry.Mapping, error)
	ListMappings(ctx context.Context) ([]registry.Mapping, error)
}

// VoiceStore persists voice assets in an append-only sequence.
type VoiceStore interface {
	AppendAsset(ctx context.Context, a voice.Asset) (uint64, error)
	GetAsset(ctx context.Context, index uint64) (voice.Asset, error)
	UpdateAsset(ctx context.Context, a voice.Asset) error
	ListAssets(ctx context.Context, f voice.ListFilter) ([]voice.Asset, error)
}

// LicenseStore persists NFT license purchase records.
type LicenseStore interface {
	CreateLicense(ctx context.Context, rec license.Record) error
	ListLicensesByBuyer(ctx context.Context, buyer string) ([]license.Record, error)
}
