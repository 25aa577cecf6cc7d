// Package memory provides an in-memory implementation of the storage
// interfaces for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yangsenessa/univoice-dapp/internal/domain/info"
	"github.com/yangsenessa/univoice-dapp/internal/domain/license"
	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
	"github.com/yangsenessa/univoice-dapp/internal/domain/reward"
	"github.com/yangsenessa/univoice-dapp/internal/domain/task"
	"github.com/yangsenessa/univoice-dapp/internal/domain/voice"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
)

// Store keeps every record in process memory behind one lock.
type Store struct {
	mu sync.RWMutex

	infos         map[string]info.Entry
	profiles      []profile.Profile
	byDapp        map[string]int
	byWallet      map[string]int
	byInviteCode  map[string]int
	inviteRecords map[string]reward.InviteRecord
	taskRecords   map[string]reward.TaskRecord
	userTasks     map[string][]task.Task
	quests        map[uint64]task.Quest
	mappings      map[string]registry.Mapping
	voiceAssets   []voice.Asset
	licenses      map[string][]license.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		infos:         make(map[string]info.Entry),
		byDapp:        make(map[string]int),
		byWallet:      make(map[string]int),
		byInviteCode:  make(map[string]int),
		inviteRecords: make(map[string]reward.InviteRecord),
		taskRecords:   make(map[string]reward.TaskRecord),
		userTasks:     make(map[string][]task.Task),
		quests:        make(map[uint64]task.Quest),
		mappings:      make(map[string]registry.Mapping),
		licenses:      make(map[string][]license.Record),
	}
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
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos[entry.Key] = entry
	return nil
}

func (s *Store) GetInfo(_ context.Context, key string) (info.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.infos[key]
	if !ok {
		return info.Entry{}, storage.ErrNotFound
	}
	return entry, nil
}

func (s *Store) ListInfo(_ context.Context) ([]info.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.infos))
	for k := range s.infos {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]info.Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.infos[k])
	}
	return out, nil
}

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.profiles)
	s.profiles = append(s.profiles, p)
	s.indexProfileLocked(p, idx)
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.findProfileLocked(p.DappPrincipal, p.WalletPrincipal)
	if err != nil {
		return err
	}
	s.profiles[idx] = p
	s.indexProfileLocked(p, idx)
	return nil
}

func (s *Store) indexProfileLocked(p profile.Profile, idx int) {
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

func (s *Store) findProfileLocked(dapp, wallet string) (int, error) {
	var (
		di, wi   int
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
	idx, err := s.findProfileLocked(dapp, wallet)
	if err != nil {
		return profile.Profile{}, err
	}
	return s.profiles[idx], nil
}

func (s *Store) GetProfileByPrincipal(_ context.Context, principal string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byDapp[principal]; ok {
		return s.profiles[idx], nil
	}
	if idx, ok := s.byWallet[principal]; ok {
		return s.profiles[idx], nil
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
	return s.profiles[idx], nil
}

func (s *Store) GetProfileByInviteCode(_ context.Context, code string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byInviteCode[code]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	return s.profiles[idx], nil
}

func (s *Store) ListProfiles(_ context.Context, page, pageSize int) (profile.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.profiles)
	start := page * pageSize
	if start >= total {
		return profile.Page{Items: []profile.Profile{}, Total: total}, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := make([]profile.Profile, end-start)
	copy(items, s.profiles[start:end])
	return profile.Page{Items: items, Total: total}, nil
}

func (s *Store) CreateInviteRecord(_ context.Context, rec reward.InviteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inviteRecords[rec.ID] = rec
	return nil
}

func (s *Store) UpdateInviteRecord(_ context.Context, rec reward.InviteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inviteRecords[rec.ID]; !ok {
		return storage.ErrNotFound
	}
	s.inviteRecords[rec.ID] = rec
	return nil
}

func (s *Store) ListInviteRecordsByUser(_ context.Context, principal string) ([]reward.InviteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []reward.InviteRecord
	for _, rec := range s.inviteRecords {
		if rec.OwnerPrincipal == principal || rec.NewUserPrincipal == principal {
			out = append(out, rec)
		}
	}
	sortInviteRecords(out)
	return out, nil
}

func (s *Store) ListInviteRecordsByOwner(_ context.Context, owner string) ([]reward.InviteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []reward.InviteRecord
	for _, rec := range s.inviteRecords {
		if rec.OwnerPrincipal == owner {
			out = append(out, rec)
		}
	}
	sortInviteRecords(out)
	return out, nil
}

func sortInviteRecords(recs []reward.InviteRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

func (s *Store) CreateTaskRecord(_ context.Context, rec reward.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskRecords[rec.ID] = rec
	return nil
}

func (s *Store) UpdateTaskRecord(_ context.Context, rec reward.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.taskRecords[rec.ID]; !ok {
		return storage.ErrNotFound
	}
	s.taskRecords[rec.ID] = rec
	return nil
}

func (s *Store) ListTaskRecordsByUser(_ context.Context, principal string) ([]reward.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []reward.TaskRecord
	for _, rec := range s.taskRecords {
		if rec.Principal == principal {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUserTasks(_ context.Context, principal string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks, ok := s.userTasks[principal]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]task.Task, len(tasks))
	copy(out, tasks)
	return out, nil
}

func (s *Store) PutUserTasks(_ context.Context, principal string, tasks []task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]task.Task, len(tasks))
	copy(stored, tasks)
	s.userTasks[principal] = stored
	return nil
}

func (s *Store) GetQuest(_ context.Context, id uint64) (task.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quests[id]
	if !ok {
		return task.Quest{}, storage.ErrNotFound
	}
	return q, nil
}

func (s *Store) PutQuest(_ context.Context, q task.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quests[q.ID] = q
	return nil
}

func (s *Store) ListQuests(_ context.Context) ([]task.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Quest, 0, len(s.quests))
	for _, q := range s.quests {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) PutMapping(_ context.Context, m registry.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[m.Name] = m
	return nil
}

func (s *Store) GetMapping(_ context.Context, name string) (registry.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[name]
	if !ok {
		return registry.Mapping{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMappings(_ context.Context) ([]registry.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.mappings))
	for n := range s.mappings {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]registry.Mapping, 0, len(names))
	for _, n := range names {
		out = append(out, s.mappings[n])
	}
	return out, nil
}

func (s *Store) AppendAsset(_ context.Context, a voice.Asset) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Index = uint64(len(s.voiceAssets))
	s.voiceAssets = append(s.voiceAssets, a)
	return a.Index, nil
}

func (s *Store) GetAsset(_ context.Context, index uint64) (voice.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index >= uint64(len(s.voiceAssets)) {
		return voice.Asset{}, storage.ErrNotFound
	}
	return s.voiceAssets[index], nil
}

func (s *Store) UpdateAsset(_ context.Context, a voice.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Index >= uint64(len(s.voiceAssets)) {
		return storage.ErrNotFound
	}
	s.voiceAssets[a.Index] = a
	return nil
}

func (s *Store) ListAssets(_ context.Context, f voice.ListFilter) ([]voice.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []voice.Asset{}
	for i := range s.voiceAssets {
		a := s.voiceAssets[i]
		if !matchAsset(a, f) {
			continue
		}
		out = append(out, a)
		if f.Take > 0 && len(out) >= f.Take {
			break
		}
	}
	return out, nil
}

func matchAsset(a voice.Asset, f voice.ListFilter) bool {
	if a.Deleted() {
		return false
	}
	if f.Principal != "" && a.Principal != f.Principal {
		return false
	}
	if f.FolderID != "" && a.FolderID != f.FolderID {
		return false
	}
	if f.Prev > 0 && a.Index <= f.Prev {
		return false
	}
	return true
}

func (s *Store) CreateLicense(_ context.Context, rec license.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licenses[rec.Buyer] = append(s.licenses[rec.Buyer], rec)
	return nil
}

func (s *Store) ListLicensesByBuyer(_ context.Context, buyer string) ([]license.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.licenses[buyer]
	out := make([]license.Record, len(recs))
	copy(out, recs)
	return out, nil
}
