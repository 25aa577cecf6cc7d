// Package postgres implements the storage interfaces over PostgreSQL.
// It is the backend of choice when the process cannot own local disk.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/yangsenessa/univoice-dapp/internal/domain/info"
	"github.com/yangsenessa/univoice-dapp/internal/domain/license"
	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
	"github.com/yangsenessa/univoice-dapp/internal/domain/reward"
	"github.com/yangsenessa/univoice-dapp/internal/domain/task"
	"github.com/yangsenessa/univoice-dapp/internal/domain/voice"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
)

// Store executes plain SQL against one database handle.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Connect opens, pings and migrates a database by DSN.
func Connect(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
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

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// nullTime maps the zero time onto SQL NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func (s *Store) PutInfo(ctx context.Context, e info.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO info_entries (key, content, version, valid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			content = EXCLUDED.content,
			version = EXCLUDED.version,
			valid = EXCLUDED.valid,
			updated_at = EXCLUDED.updated_at`,
		e.Key, e.Content, e.Version, e.Valid, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) GetInfo(ctx context.Context, key string) (info.Entry, error) {
	var e info.Entry
	err := s.db.QueryRowContext(ctx, `
		SELECT key, content, version, valid, created_at, updated_at
		FROM info_entries WHERE key = $1`, key).
		Scan(&e.Key, &e.Content, &e.Version, &e.Valid, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return info.Entry{}, notFound(err)
	}
	return e, nil
}

func (s *Store) ListInfo(ctx context.Context) ([]info.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, content, version, valid, created_at, updated_at
		FROM info_entries ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []info.Entry
	for rows.Next() {
		var e info.Entry
		if err := rows.Scan(&e.Key, &e.Content, &e.Version, &e.Valid, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, dapp_principal, wallet_principal, nickname, logo,
			invite_code, used_invite_code, invite_code_filled, total_rewards, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.NewString(), p.DappPrincipal, p.WalletPrincipal, p.Nickname, p.Logo,
		p.InviteCode, p.UsedInviteCode, p.InviteCodeFilled, int64(p.TotalRewards), p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) error {
	existing, err := s.FindProfile(ctx, p.DappPrincipal, p.WalletPrincipal)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET dapp_principal = $1, wallet_principal = $2, nickname = $3,
			logo = $4, invite_code = $5, used_invite_code = $6, invite_code_filled = $7,
			total_rewards = $8, updated_at = $9
		WHERE dapp_principal = $10 OR wallet_principal = $11`,
		p.DappPrincipal, p.WalletPrincipal, p.Nickname, p.Logo,
		p.InviteCode, p.UsedInviteCode, p.InviteCodeFilled, int64(p.TotalRewards), p.UpdatedAt,
		nonEmpty(existing.DappPrincipal), nonEmpty(existing.WalletPrincipal))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// nonEmpty substitutes a value no principal column can hold, so an empty
// identifier never matches blank columns in OR lookups.
func nonEmpty(v string) string {
	if v == "" {
		return "\x00absent"
	}
	return v
}

func scanProfile(row *sql.Row) (profile.Profile, error) {
	var p profile.Profile
	var rewards int64
	err := row.Scan(&p.DappPrincipal, &p.WalletPrincipal, &p.Nickname, &p.Logo,
		&p.InviteCode, &p.UsedInviteCode, &p.InviteCodeFilled, &rewards, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, notFound(err)
	}
	p.TotalRewards = uint64(rewards)
	return p, nil
}

const profileColumns = `dapp_principal, wallet_principal, nickname, logo,
	invite_code, used_invite_code, invite_code_filled, total_rewards, created_at, updated_at`

func (s *Store) FindProfile(ctx context.Context, dapp, wallet string) (profile.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, `+profileColumns+`
		FROM profiles WHERE dapp_principal = $1 OR wallet_principal = $2
		ORDER BY seq`, nonEmpty(dapp), nonEmpty(wallet))
	if err != nil {
		return profile.Profile{}, err
	}
	defer rows.Close()

	var (
		found bool
		seq   int64
		p     profile.Profile
	)
	for rows.Next() {
		var cur profile.Profile
		var curSeq, rewards int64
		if err := rows.Scan(&curSeq, &cur.DappPrincipal, &cur.WalletPrincipal, &cur.Nickname,
			&cur.Logo, &cur.InviteCode, &cur.UsedInviteCode, &cur.InviteCodeFilled, &rewards,
			&cur.CreatedAt, &cur.UpdatedAt); err != nil {
			return profile.Profile{}, err
		}
		cur.TotalRewards = uint64(rewards)
		if found && curSeq != seq {
			return profile.Profile{}, storage.ErrAmbiguousIdentity
		}
		found, seq, p = true, curSeq, cur
	}
	if err := rows.Err(); err != nil {
		return profile.Profile{}, err
	}
	if !found {
		return profile.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProfileByPrincipal(ctx context.Context, principal string) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles WHERE dapp_principal = $1 OR wallet_principal = $1
		ORDER BY (dapp_principal = $1) DESC LIMIT 1`, nonEmpty(principal))
	return scanProfile(row)
}

func (s *Store) GetProfileByWallet(ctx context.Context, wallet string) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles WHERE wallet_principal = $1`, nonEmpty(wallet))
	return scanProfile(row)
}

func (s *Store) GetProfileByInviteCode(ctx context.Context, code string) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles WHERE invite_code = $1`, nonEmpty(code))
	return scanProfile(row)
}

func (s *Store) ListProfiles(ctx context.Context, page, pageSize int) (profile.Page, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return profile.Page{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles ORDER BY seq LIMIT $1 OFFSET $2`, pageSize, page*pageSize)
	if err != nil {
		return profile.Page{}, err
	}
	defer rows.Close()

	items := []profile.Profile{}
	for rows.Next() {
		var p profile.Profile
		var rewards int64
		if err := rows.Scan(&p.DappPrincipal, &p.WalletPrincipal, &p.Nickname, &p.Logo,
			&p.InviteCode, &p.UsedInviteCode, &p.InviteCodeFilled, &rewards, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return profile.Page{}, err
		}
		p.TotalRewards = uint64(rewards)
		items = append(items, p)
	}
	return profile.Page{Items: items, Total: total}, rows.Err()
}

func (s *Store) CreateInviteRecord(ctx context.Context, rec reward.InviteRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invite_records (id, code, owner_principal, new_user_principal, amount, claimed, claimed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Code, rec.OwnerPrincipal, rec.NewUserPrincipal, int64(rec.Amount), rec.Claimed, nullTime(rec.ClaimedAt), rec.CreatedAt)
	return err
}

func (s *Store) UpdateInviteRecord(ctx context.Context, rec reward.InviteRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invite_records SET claimed = $1, claimed_at = $2 WHERE id = $3`,
		rec.Claimed, nullTime(rec.ClaimedAt), rec.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) listInviteRecords(ctx context.Context, query string, args ...interface{}) ([]reward.InviteRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reward.InviteRecord
	for rows.Next() {
		var rec reward.InviteRecord
		var amount int64
		var claimedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Code, &rec.OwnerPrincipal, &rec.NewUserPrincipal,
			&amount, &rec.Claimed, &claimedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Amount = uint64(amount)
		if claimedAt.Valid {
			rec.ClaimedAt = claimedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListInviteRecordsByUser(ctx context.Context, principal string) ([]reward.InviteRecord, error) {
	return s.listInviteRecords(ctx, `
		SELECT id, code, owner_principal, new_user_principal, amount, claimed, claimed_at, created_at
		FROM invite_records WHERE owner_principal = $1 OR new_user_principal = $1
		ORDER BY id`, principal)
}

func (s *Store) ListInviteRecordsByOwner(ctx context.Context, owner string) ([]reward.InviteRecord, error) {
	return s.listInviteRecords(ctx, `
		SELECT id, code, owner_principal, new_user_principal, amount, claimed, claimed_at, created_at
		FROM invite_records WHERE owner_principal = $1 ORDER BY id`, owner)
}

func (s *Store) CreateTaskRecord(ctx context.Context, rec reward.TaskRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_records (id, principal, task_id, amount, claimed, claimed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Principal, rec.TaskID, int64(rec.Amount), rec.Claimed, nullTime(rec.ClaimedAt), rec.CreatedAt)
	return err
}

func (s *Store) UpdateTaskRecord(ctx context.Context, rec reward.TaskRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_records SET claimed = $1, claimed_at = $2 WHERE id = $3`,
		rec.Claimed, nullTime(rec.ClaimedAt), rec.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListTaskRecordsByUser(ctx context.Context, principal string) ([]reward.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, principal, task_id, amount, claimed, claimed_at, created_at
		FROM task_records WHERE principal = $1 ORDER BY id`, principal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reward.TaskRecord
	for rows.Next() {
		var rec reward.TaskRecord
		var amount int64
		var claimedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Principal, &rec.TaskID, &amount, &rec.Claimed, &claimedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Amount = uint64(amount)
		if claimedAt.Valid {
			rec.ClaimedAt = claimedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetUserTasks(ctx context.Context, principal string) ([]task.Task, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT tasks FROM user_tasks WHERE principal = $1`, principal).Scan(&raw)
	if err != nil {
		return nil, notFound(err)
	}
	var tasks []task.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks for %s: %w", principal, err)
	}
	return tasks, nil
}

func (s *Store) PutUserTasks(ctx context.Context, principal string, tasks []task.Task) error {
	raw, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks for %s: %w", principal, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_tasks (principal, tasks, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (principal) DO UPDATE SET tasks = EXCLUDED.tasks, updated_at = NOW()`,
		principal, raw)
	return err
}

func (s *Store) GetQuest(ctx context.Context, id uint64) (task.Quest, error) {
	var q task.Quest
	var reward int64
	var claimedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, redirect_url, reward, completed, claimed_by, claimed_at
		FROM quests WHERE id = $1`, int64(id)).
		Scan(&q.ID, &q.Name, &q.RedirectURL, &reward, &q.Completed, &q.ClaimedBy, &claimedAt)
	if err != nil {
		return task.Quest{}, notFound(err)
	}
	q.Reward = uint64(reward)
	if claimedAt.Valid {
		q.ClaimedAt = claimedAt.Time
	}
	return q, nil
}

func (s *Store) PutQuest(ctx context.Context, q task.Quest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quests (id, name, redirect_url, reward, completed, claimed_by, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			redirect_url = EXCLUDED.redirect_url,
			reward = EXCLUDED.reward,
			completed = EXCLUDED.completed,
			claimed_by = EXCLUDED.claimed_by,
			claimed_at = EXCLUDED.claimed_at`,
		int64(q.ID), q.Name, q.RedirectURL, int64(q.Reward), q.Completed, q.ClaimedBy, nullTime(q.ClaimedAt))
	return err
}

func (s *Store) ListQuests(ctx context.Context) ([]task.Quest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, redirect_url, reward, completed, claimed_by, claimed_at
		FROM quests ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Quest
	for rows.Next() {
		var q task.Quest
		var reward int64
		var claimedAt sql.NullTime
		if err := rows.Scan(&q.ID, &q.Name, &q.RedirectURL, &reward, &q.Completed, &q.ClaimedBy, &claimedAt); err != nil {
			return nil, err
		}
		q.Reward = uint64(reward)
		if claimedAt.Valid {
			q.ClaimedAt = claimedAt.Time
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) PutMapping(ctx context.Context, m registry.Mapping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canister_mappings (name, canister_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET canister_id = EXCLUDED.canister_id, updated_at = EXCLUDED.updated_at`,
		m.Name, m.CanisterID, m.UpdatedAt)
	return err
}

func (s *Store) GetMapping(ctx context.Context, name string) (registry.Mapping, error) {
	var m registry.Mapping
	err := s.db.QueryRowContext(ctx, `
		SELECT name, canister_id, updated_at FROM canister_mappings WHERE name = $1`, name).
		Scan(&m.Name, &m.CanisterID, &m.UpdatedAt)
	if err != nil {
		return registry.Mapping{}, notFound(err)
	}
	return m, nil
}

func (s *Store) ListMappings(ctx context.Context) ([]registry.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, canister_id, updated_at FROM canister_mappings ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.Mapping
	for rows.Next() {
		var m registry.Mapping
		if err := rows.Scan(&m.Name, &m.CanisterID, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AppendAsset(ctx context.Context, a voice.Asset) (uint64, error) {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}
	var idx int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO voice_assets (principal, folder_id, file_id, file_name, content, metadata, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING idx`,
		a.Principal, a.FolderID, a.FileID, a.FileName, a.Content, meta, a.Status, a.CreatedAt, a.UpdatedAt).
		Scan(&idx)
	if err != nil {
		return 0, err
	}
	return uint64(idx), nil
}

func scanAsset(scan func(dest ...interface{}) error) (voice.Asset, error) {
	var a voice.Asset
	var idx int64
	var meta []byte
	if err := scan(&idx, &a.Principal, &a.FolderID, &a.FileID, &a.FileName,
		&a.Content, &meta, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return voice.Asset{}, err
	}
	a.Index = uint64(idx)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return voice.Asset{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return a, nil
}

func (s *Store) GetAsset(ctx context.Context, index uint64) (voice.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT idx, principal, folder_id, file_id, file_name, content, metadata, status, created_at, updated_at
		FROM voice_assets WHERE idx = $1`, int64(index))
	a, err := scanAsset(row.Scan)
	if err != nil {
		return voice.Asset{}, notFound(err)
	}
	return a, nil
}

func (s *Store) UpdateAsset(ctx context.Context, a voice.Asset) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE voice_assets SET status = $1, updated_at = $2 WHERE idx = $3`,
		a.Status, a.UpdatedAt, int64(a.Index))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListAssets(ctx context.Context, f voice.ListFilter) ([]voice.Asset, error) {
	query := `
		SELECT idx, principal, folder_id, file_id, file_name, content, metadata, status, created_at, updated_at
		FROM voice_assets WHERE status <> $1`
	args := []interface{}{voice.StatusDeleted}
	if f.Principal != "" {
		args = append(args, f.Principal)
		query += fmt.Sprintf(" AND principal = $%d", len(args))
	}
	if f.FolderID != "" {
		args = append(args, f.FolderID)
		query += fmt.Sprintf(" AND folder_id = $%d", len(args))
	}
	if f.Prev > 0 {
		args = append(args, int64(f.Prev))
		query += fmt.Sprintf(" AND idx > $%d", len(args))
	}
	query += " ORDER BY idx"
	if f.Take > 0 {
		args = append(args, f.Take)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []voice.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateLicense(ctx context.Context, rec license.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO licenses (collection_id, token_id, buyer, purchase_time, expire_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collection_id, token_id) DO UPDATE SET
			buyer = EXCLUDED.buyer,
			purchase_time = EXCLUDED.purchase_time,
			expire_time = EXCLUDED.expire_time`,
		rec.CollectionID, int64(rec.TokenID), rec.Buyer, rec.PurchaseTime, rec.ExpireTime, rec.CreatedAt)
	return err
}

func (s *Store) ListLicensesByBuyer(ctx context.Context, buyer string) ([]license.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, token_id, buyer, purchase_time, expire_time, created_at
		FROM licenses WHERE buyer = $1 ORDER BY collection_id, token_id`, buyer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []license.Record{}
	for rows.Next() {
		var rec license.Record
		var tokenID int64
		if err := rows.Scan(&rec.CollectionID, &tokenID, &rec.Buyer, &rec.PurchaseTime, &rec.ExpireTime, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.TokenID = uint64(tokenID)
		out = append(out, rec)
	}
	return out, rows.Err()
}
