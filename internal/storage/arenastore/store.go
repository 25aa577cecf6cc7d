// Package arenastore implements the storage interfaces over arena
// regions. This is the canonical backend: everything it holds survives
// process restarts through the region logs.
package arenastore

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/yangsenessa/univoice-dapp/internal/domain/info"
	"github.com/yangsenessa/univoice-dapp/internal/domain/license"
	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
	"github.com/yangsenessa/univoice-dapp/internal/domain/reward"
	"github.com/yangsenessa/univoice-dapp/internal/domain/task"
	"github.com/yangsenessa/univoice-dapp/internal/domain/voice"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/internal/storage/arena"
)

// Region assignments are permanent; changing one orphans existing data.
const (
	regionInfo     uint8 = 0
	regionProfiles uint8 = 1
	regionInvites  uint8 = 2
	regionTaskRecs uint8 = 3
	regionVoice    uint8 = 4
	regionTasks    uint8 = 5
	regionRegistry uint8 = 6
	regionQuests   uint8 = 7
	regionLicenses uint8 = 8
)

// Store materializes every container over one arena.
type Store struct {
	infos       *arena.Map[info.Entry]
	profiles    *arena.Vec[profile.Profile]
	invites     *arena.Map[reward.InviteRecord]
	taskRecords *arena.Map[reward.TaskRecord]
	voiceAssets *arena.Vec[voice.Asset]
	userTasks   *arena.Map[[]task.Task]
	mappings    *arena.Map[registry.Mapping]
	quests      *arena.Map[task.Quest]
	licenses    *arena.Map[license.Record]

	mu           sync.RWMutex
	byDapp       map[string]uint64
	byWallet     map[string]uint64
	byInviteCode map[string]uint64
}

// Open replays every region of the arena into a ready Store.
func Open(a *arena.Arena) (*Store, error) {
	s := &Store{
		byDapp:       make(map[string]uint64),
		byWallet:     make(map[string]uint64),
		byInviteCode: make(map[string]uint64),
	}

	var err error
	if s.infos, err = openMap(a, regionInfo, arena.NewCodec[info.Entry]("info", arena.MaxInfoSize)); err != nil {
		return nil, err
	}
	if s.invites, err = openMap(a, regionInvites, arena.NewCodec[reward.InviteRecord]("invite_record", arena.MaxRewardSize)); err != nil {
		return nil, err
	}
	if s.taskRecords, err = openMap(a, regionTaskRecs, arena.NewCodec[reward.TaskRecord]("task_record", arena.MaxRewardSize)); err != nil {
		return nil, err
	}
	if s.userTasks, err = openMap(a, regionTasks, arena.NewCodec[[]task.Task]("user_tasks", arena.MaxTasksSize)); err != nil {
		return nil, err
	}
	if s.mappings, err = openMap(a, regionRegistry, arena.NewCodec[registry.Mapping]("registry", arena.MaxRegistrySize)); err != nil {
		return nil, err
	}
	if s.quests, err = openMap(a, regionQuests, arena.NewCodec[task.Quest]("quest", arena.MaxQuestSize)); err != nil {
		return nil, err
	}
	if s.licenses, err = openMap(a, regionLicenses, arena.NewCodec[license.Record]("license", arena.MaxRewardSize)); err != nil {
		return nil, err
	}

	pr, err := a.Region(regionProfiles)
	if err != nil {
		return nil, err
	}
	if s.profiles, err = arena.OpenVec(pr, arena.NewCodec[profile.Profile]("profile", arena.MaxProfileSize)); err != nil {
		return nil, err
	}

	vr, err := a.Region(regionVoice)
	if err != nil {
		return nil, err
	}
	if s.voiceAssets, err = arena.OpenVecLenient(vr, arena.NewCodec[voice.Asset]("voice_asset", arena.MaxVoiceSize)); err != nil {
		return nil, err
	}

	s.profiles.Range(func(i uint64, p profile.Profile) bool {
		s.indexProfileLocked(p, i)
		return true
	})
	return s, nil
}

func openMap[V any](a *arena.Arena, id uint8, c arena.Codec[V]) (*arena.Map[V], error) {
	r, err := a.Region(id)
	if err != nil {
		return nil, err
	}
	return arena.OpenMap(r, c)
}

// DegradedVoiceAssets reports how many voice records failed decoding on
// open and are held as placeholders.
func (s *Store) DegradedVoiceAssets() int { return s.voiceAssets.Degraded() }

// Checkpoint compacts every container's region log.
func (s *Store) Checkpoint() error {
	for name, cp := range map[string]func() error{
		"info":         s.infos.Checkpoint,
		"profiles":     s.profiles.Checkpoint,
		"invites":      s.invites.Checkpoint,
		"task_records": s.taskRecords.Checkpoint,
		"voice":        s.voiceAssets.Checkpoint,
		"user_tasks":   s.userTasks.Checkpoint,
		"registry":     s.mappings.Checkpoint,
		"quests":       s.quests.Checkpoint,
		"licenses":     s.licenses.Checkpoint,
	} {
		if err := cp(); err != nil {
			return fmt.Errorf("checkpoint %s: %w", name, err)
		}
	}
	return nil
}

var (
	_ storage.InfoStore     = (*Store)(nil)
	_ storage.ProfileStore  = (*Store)(nil)
	_ storage.RewardStore   = (*Store)(nil)
	_ storage.TaskStore     = (*Store)(nil)
	_ storage.RegistryStore = (*Store)(nil)
	_ storage.VoiceStore    = (*Store)(nil)
	_ storage.LicenseStore  = (*Store)(nil)
)

func (s *Store) PutInfo(_ context.Context, entry info.Entry) error {
	return s.infos.Set(entry.Key, entry)
}

func (s *Store) GetInfo(_ context.Context, key string) (info.Entry, error) {
	entry, ok := s.infos.Get(key)
	if !ok {
		return info.Entry{}, storage.ErrNotFound
	}
	return entry, nil
}

func (s *Store) ListInfo(_ context.Context) ([]info.Entry, error) {
	out := make([]info.Entry, 0, s.infos.Len())
	s.infos.Range(func(_ string, entry info.Entry) bool {
		out = append(out, entry)
		return true
	})
	return out, nil
}

func (s *Store) indexProfileLocked(p profile.Profile, idx uint64) {
	if p.DappPrincipal != "" {
		s.byDapp[p.DappPrincipal] = idx
	}
	if p.WalletPrincipal != "" {
		s.byWallet[p.WalletPrincipal] = idx
	}
	if p.InviteCode != "" {
		s.byInviteCode[p.InviteCode] = idx
	}
}

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.profiles.Push(p)
	if err != nil {
		return err
	}
	s.indexProfileLocked(p, idx)
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.resolveLocked(p.DappPrincipal, p.WalletPrincipal)
	if err != nil {
		return err
	}
	if err := s.profiles.Set(idx, p); err != nil {
		return err
	}
	s.indexProfileLocked(p, idx)
	return nil
}

func (s *Store) resolveLocked(dapp, wallet string) (uint64, error) {
	var (
		di, wi   uint64
		dok, wok bool
	)
	if dapp != "" {
		di, dok = s.byDapp[dapp]
	}
	if wallet != "" {
		wi, wok = s.byWallet[wallet]
	}
	switch {
	case dok && wok:
		if di != wi {
			return 0, storage.ErrAmbiguousIdentity
		}
		return di, nil
	case dok:
		return di, nil
	case wok:
		return wi, nil
	default:
		return 0, storage.ErrNotFound
	}
}

func (s *Store) FindProfile(_ context.Context, dapp, wallet string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.resolveLocked(dapp, wallet)
	if err != nil {
		return profile.Profile{}, err
	}
	p, _ := s.profiles.Get(idx)
	return p, nil
}

func (s *Store) GetProfileByPrincipal(_ context.Context, principal string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byDapp[principal]; ok {
		p, _ := s.profiles.Get(idx)
		return p, nil
	}
	if idx, ok := s.byWallet[principal]; ok {
		p, _ := s.profiles.Get(idx)
		return p, nil
	}
	return profile.Profile{}, storage.ErrNotFound
}

func (s *Store) GetProfileByWallet(_ context.Context, wallet string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byWallet[wallet]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	p, _ := s.profiles.Get(idx)
	return p, nil
}

func (s *Store) GetProfileByInviteCode(_ context.Context, code string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byInviteCode[code]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	p, _ := s.profiles.Get(idx)
	return p, nil
}

func (s *Store) ListProfiles(_ context.Context, page, pageSize int) (profile.Page, error) {
	total := int(s.profiles.Len())
	start := page * pageSize
	if start >= total {
		return profile.Page{Items: []profile.Profile{}, Total: total}, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := make([]profile.Profile, 0, end-start)
	for i := start; i < end; i++ {
		p, _ := s.profiles.Get(uint64(i))
		items = append(items, p)
	}
	return profile.Page{Items: items, Total: total}, nil
}

func (s *Store) CreateInviteRecord(_ context.Context, rec reward.InviteRecord) error {
	return s.invites.Set(rec.ID, rec)
}

func (s *Store) UpdateInviteRecord(_ context.Context, rec reward.InviteRecord) error {
	if _, ok := s.invites.Get(rec.ID); !ok {
		return storage.ErrNotFound
	}
	return s.invites.Set(rec.ID, rec)
}

func (s *Store) ListInviteRecordsByUser(_ context.Context, principal string) ([]reward.InviteRecord, error) {
	var out []reward.InviteRecord
	s.invites.Range(func(_ string, rec reward.InviteRecord) bool {
		if rec.OwnerPrincipal == principal || rec.NewUserPrincipal == principal {
			out = append(out, rec)
		}
		return true
	})
	return out, nil
}

func (s *Store) ListInviteRecordsByOwner(_ context.Context, owner string) ([]reward.InviteRecord, error) {
	var out []reward.InviteRecord
	s.invites.Range(func(_ string, rec reward.InviteRecord) bool {
		if rec.OwnerPrincipal == owner {
			out = append(out, rec)
		}
		return true
	})
	return out, nil
}

func (s *Store) CreateTaskRecord(_ context.Context, rec reward.TaskRecord) error {
	return s.taskRecords.Set(rec.ID, rec)
}

func (s *Store) UpdateTaskRecord(_ context.Context, rec reward.TaskRecord) error {
	if _, ok := s.taskRecords.Get(rec.ID); !ok {
		return storage.ErrNotFound
	}
	return s.taskRecords.Set(rec.ID, rec)
}

func (s *Store) ListTaskRecordsByUser(_ context.Context, principal string) ([]reward.TaskRecord, error) {
	var out []reward.TaskRecord
	s.taskRecords.Range(func(_ string, rec reward.TaskRecord) bool {
		if rec.Principal == principal {
			out = append(out, rec)
		}
		return true
	})
	return out, nil
}

func (s *Store) GetUserTasks(_ context.Context, principal string) ([]task.Task, error) {
	tasks, ok := s.userTasks.Get(principal)
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]task.Task, len(tasks))
	copy(out, tasks)
	return out, nil
}

func (s *Store) PutUserTasks(_ context.Context, principal string, tasks []task.Task) error {
	stored := make([]task.Task, len(tasks))
	copy(stored, tasks)
	return s.userTasks.Set(principal, stored)
}

func questKey(id uint64) string { return strconv.FormatUint(id, 10) }

func (s *Store) GetQuest(_ context.Context, id uint64) (task.Quest, error) {
	q, ok := s.quests.Get(questKey(id))
	if !ok {
		return task.Quest{}, storage.ErrNotFound
	}
	return q, nil
}

func (s *Store) PutQuest(_ context.Context, q task.Quest) error {
	return s.quests.Set(questKey(q.ID), q)
}

func (s *Store) ListQuests(_ context.Context) ([]task.Quest, error) {
	out := make([]task.Quest, 0, s.quests.Len())
	s.quests.Range(func(_ string, q task.Quest) bool {
		out = append(out, q)
		return true
	})
	return out, nil
}

func (s *Store) PutMapping(_ context.Context, m registry.Mapping) error {
	return s.mappings.Set(m.Name, m)
}

func (s *Store) GetMapping(_ context.Context, name string) (registry.Mapping, error) {
	m, ok := s.mappings.Get(name)
	if !ok {
		return registry.Mapping{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMappings(_ context.Context) ([]registry.Mapping, error) {
	out := make([]registry.Mapping, 0, s.mappings.Len())
	s.mappings.Range(func(_ string, m registry.Mapping) bool {
		out = append(out, m)
		return true
	})
	return out, nil
}

func (s *Store) AppendAsset(_ context.Context, a voice.Asset) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Index = s.voiceAssets.Len()
	return s.voiceAssets.Push(a)
}

func (s *Store) GetAsset(_ context.Context, index uint64) (voice.Asset, error) {
	a, ok := s.voiceAssets.Get(index)
	if !ok {
		return voice.Asset{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) UpdateAsset(_ context.Context, a voice.Asset) error {
	if a.Index >= s.voiceAssets.Len() {
		return storage.ErrNotFound
	}
	return s.voiceAssets.Set(a.Index, a)
}

func (s *Store) ListAssets(_ context.Context, f voice.ListFilter) ([]voice.Asset, error) {
	out := []voice.Asset{}
	s.voiceAssets.Range(func(_ uint64, a voice.Asset) bool {
		if a.Deleted() {
			return true
		}
		if f.Principal != "" && a.Principal != f.Principal {
			return true
		}
		if f.FolderID != "" && a.FolderID != f.FolderID {
			return true
		}
		if f.Prev > 0 && a.Index <= f.Prev {
			return true
		}
		out = append(out, a)
		return f.Take <= 0 || len(out) < f.Take
	})
	return out, nil
}

func licenseKey(rec license.Record) string {
	return fmt.Sprintf("%s_%d", rec.CollectionID, rec.TokenID)
}

func (s *Store) CreateLicense(_ context.Context, rec license.Record) error {
	return s.licenses.Set(licenseKey(rec), rec)
}

func (s *Store) ListLicensesByBuyer(_ context.Context, buyer string) ([]license.Record, error) {
	out := []license.Record{}
	s.licenses.Range(func(_ string, rec license.Record) bool {
		if rec.Buyer == buyer {
			out = append(out, rec)
		}
		return true
	})
	return out, nil
}
