// Package httpapi exposes the REST surface of the service.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/voice"
	"github.com/yangsenessa/univoice-dapp/internal/httputil"
	"github.com/yangsenessa/univoice-dapp/internal/middleware"
	infosvc "github.com/yangsenessa/univoice-dapp/internal/services/info"
	licensesvc "github.com/yangsenessa/univoice-dapp/internal/services/license"
	profilesvc "github.com/yangsenessa/univoice-dapp/internal/services/profile"
	registrysvc "github.com/yangsenessa/univoice-dapp/internal/services/registry"
	rewardsvc "github.com/yangsenessa/univoice-dapp/internal/services/reward"
	tasksvc "github.com/yangsenessa/univoice-dapp/internal/services/task"
	voicesvc "github.com/yangsenessa/univoice-dapp/internal/services/voice"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// Services bundles everything the handlers call.
type Services struct {
	Info     *infosvc.Service
	Profiles *profilesvc.Service
	Rewards  *rewardsvc.Service
	Tasks    *tasksvc.Service
	Registry *registrysvc.Service
	Licenses *licensesvc.Service
	Voice    *voicesvc.Service
}

// Handler serves the REST API.
type Handler struct {
	svc  Services
	auth *middleware.Auth
	log  *logger.Logger
}

// New constructs a handler.
func New(svc Services, auth *middleware.Auth, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{svc: svc, auth: auth, log: log}
}

// Register mounts every route under /api/v1. Queries are open; update
// operations sit behind the role gates.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	controller := api.NewRoute().Subrouter()
	controller.Use(h.auth.RequireRole(middleware.RoleController))
	controller.HandleFunc("/info", h.addInfo).Methods(http.MethodPost)
	controller.HandleFunc("/info/batch", h.batchAddInfo).Methods(http.MethodPost)
	controller.HandleFunc("/info/{key}", h.updateInfo).Methods(http.MethodPut)
	controller.HandleFunc("/info/{key}", h.invalidateInfo).Methods(http.MethodDelete)
	controller.HandleFunc("/registry", h.addMapping).Methods(http.MethodPost)

	frontend := api.NewRoute().Subrouter()
	frontend.Use(h.auth.RequireRole(middleware.RoleFrontend, middleware.RoleController))
	frontend.HandleFunc("/profiles", h.addProfile).Methods(http.MethodPost)
	frontend.HandleFunc("/profiles", h.updateProfile).Methods(http.MethodPatch)
	frontend.HandleFunc("/invites/use", h.useInviteCode).Methods(http.MethodPost)
	frontend.HandleFunc("/users/{principal}/claim", h.claimTokens).Methods(http.MethodPost)
	frontend.HandleFunc("/users/{principal}/tasks/{task_id}/status", h.updateTaskStatus).Methods(http.MethodPut)
	frontend.HandleFunc("/quests/{quest_id}/claim", h.claimQuest).Methods(http.MethodPost)
	frontend.HandleFunc("/nft/purchase", h.buyLicense).Methods(http.MethodPost)
	frontend.HandleFunc("/voice", h.uploadVoice).Methods(http.MethodPost)
	frontend.HandleFunc("/voice/{index}", h.deleteVoice).Methods(http.MethodDelete)

	api.HandleFunc("/info", h.batchGetInfo).Methods(http.MethodGet)
	api.HandleFunc("/info/{key}", h.getInfo).Methods(http.MethodGet)
	api.HandleFunc("/profiles", h.listProfiles).Methods(http.MethodGet)
	api.HandleFunc("/profiles/find", h.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/users/{principal}/rewards", h.getUserRewards).Methods(http.MethodGet)
	api.HandleFunc("/users/{principal}/rewards/unclaimed", h.getUnclaimedRewards).Methods(http.MethodGet)
	api.HandleFunc("/users/{principal}/friends", h.getFriendInfos).Methods(http.MethodGet)
	api.HandleFunc("/users/{principal}/invited", h.getInvitedUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{principal}/tasks", h.getUserTasks).Methods(http.MethodGet)
	api.HandleFunc("/users/{principal}/licenses", h.listUserLicenses).Methods(http.MethodGet)
	api.HandleFunc("/quests", h.listQuests).Methods(http.MethodGet)
	api.HandleFunc("/registry", h.listMappings).Methods(http.MethodGet)
	api.HandleFunc("/registry/{name}", h.getMapping).Methods(http.MethodGet)
	api.HandleFunc("/nft/collections/{id}", h.getCollection).Methods(http.MethodGet)
	api.HandleFunc("/nft/holdings", h.getUserNFTs).Methods(http.MethodPost)
	api.HandleFunc("/voice", h.listVoice).Methods(http.MethodGet)
	api.HandleFunc("/voice/{index}", h.getVoice).Methods(http.MethodGet)
}

// respondError maps service errors onto HTTP statuses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, storage.ErrAmbiguousIdentity),
		errors.Is(err, rewardsvc.ErrCodeAlreadyUsed),
		errors.Is(err, profilesvc.ErrInviteCodeAlreadyUsed),
		errors.Is(err, tasksvc.ErrTaskFinished):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, rewardsvc.ErrUnknownInviteCode),
		errors.Is(err, tasksvc.ErrUnknownTask):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, rewardsvc.ErrSelfReferral):
		httputil.BadRequest(w, err.Error())
	default:
		h.log.WithError(err).Error("request failed")
		httputil.InternalError(w, "internal error")
	}
}

func (h *Handler) addInfo(w http.ResponseWriter, r *http.Request) {
	var req infosvc.Item
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	entry, err := h.svc.Info.AddInfoItem(r.Context(), req)
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

// knownErrors carry their own status through respondError; anything
// else coming out of an update operation is a validation failure.
var knownErrors = []error{
	storage.ErrNotFound, storage.ErrAmbiguousIdentity,
	rewardsvc.ErrUnknownInviteCode, rewardsvc.ErrSelfReferral, rewardsvc.ErrCodeAlreadyUsed,
	profilesvc.ErrInviteCodeAlreadyUsed, tasksvc.ErrTaskFinished, tasksvc.ErrUnknownTask,
}

func (h *Handler) respondBadOr(w http.ResponseWriter, err error) {
	for _, sentinel := range knownErrors {
		if errors.Is(err, sentinel) {
			h.respondError(w, err)
			return
		}
	}
	httputil.BadRequest(w, err.Error())
}

func (h *Handler) batchAddInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []infosvc.Item `json:"items"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.svc.Info.BatchAddInfoItems(r.Context(), req.Items); err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"stored": len(req.Items)})
}

func (h *Handler) updateInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	entry, err := h.svc.Info.UpdateInfoItem(r.Context(), infosvc.Item{Key: mux.Vars(r)["key"], Content: req.Content})
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) invalidateInfo(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Info.InvalidateInfoItem(r.Context(), mux.Vars(r)["key"]); err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) getInfo(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Info.GetInfoByKey(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) batchGetInfo(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("keys")
	if raw == "" {
		httputil.BadRequest(w, "keys query parameter is required")
		return
	}
	entries, err := h.svc.Info.BatchGetInfo(r.Context(), strings.Split(raw, ","))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

type profileRequest struct {
	DappPrincipal   string `json:"dapp_principal"`
	WalletPrincipal string `json:"wallet_principal"`
	Nickname        string `json:"nickname"`
	Logo            string `json:"logo"`
	UsedInviteCode  string `json:"used_invite_code"`
}

func (h *Handler) addProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	p, err := h.svc.Profiles.AddCustomInfo(r.Context(), profile.Profile{
		DappPrincipal:   req.DappPrincipal,
		WalletPrincipal: req.WalletPrincipal,
		Nickname:        req.Nickname,
		Logo:            req.Logo,
		UsedInviteCode:  req.UsedInviteCode,
	})
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	p, err := h.svc.Profiles.UpdateCustomInfo(r.Context(), req.DappPrincipal, req.WalletPrincipal, req.Nickname, req.Logo)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := h.svc.Profiles.GetCustomInfo(r.Context(), q.Get("dapp_principal"), q.Get("wallet_principal"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, err := strconv.Atoi(q.Get("page_size"))
	if err != nil || pageSize == 0 {
		pageSize = 20
	}
	result, err := h.svc.Profiles.ListCustomInfo(r.Context(), page, pageSize)
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) useInviteCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code            string `json:"code"`
		WalletPrincipal string `json:"wallet_principal"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	rec, err := h.svc.Rewards.UseInviteCode(r.Context(), req.Code, req.WalletPrincipal)
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) getUserRewards(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Rewards.GetUserRewards(r.Context(), mux.Vars(r)["principal"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) getUnclaimedRewards(w http.ResponseWriter, r *http.Request) {
	total, err := h.svc.Rewards.GetUnclaimedRewards(r.Context(), mux.Vars(r)["principal"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"unclaimed": total})
}

func (h *Handler) getFriendInfos(w http.ResponseWriter, r *http.Request) {
	friends, err := h.svc.Rewards.GetFriendInfos(r.Context(), mux.Vars(r)["principal"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, friends)
}

func (h *Handler) getInvitedUsers(w http.ResponseWriter, r *http.Request) {
	invited, err := h.svc.Rewards.GetInvitedUsers(r.Context(), mux.Vars(r)["principal"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invited)
}

func (h *Handler) claimTokens(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Rewards.ClaimTokens(r.Context(), mux.Vars(r)["principal"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) getUserTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.Tasks.GetUserTasks(r.Context(), mux.Vars(r)["principal"])
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tasks)
}

func (h *Handler) updateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	vars := mux.Vars(r)
	t, err := h.svc.Tasks.UpdateTaskStatus(r.Context(), vars["principal"], vars["task_id"], req.Status)
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) claimQuest(w http.ResponseWriter, r *http.Request) {
	questID, err := strconv.ParseUint(mux.Vars(r)["quest_id"], 10, 64)
	if err != nil {
		httputil.BadRequest(w, "quest_id must be numeric")
		return
	}
	var req struct {
		Principal string `json:"principal"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	granted, err := h.svc.Tasks.ClaimQuestReward(r.Context(), req.Principal, questID)
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (h *Handler) listQuests(w http.ResponseWriter, r *http.Request) {
	quests, err := h.svc.Tasks.ListQuests(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quests)
}

func (h *Handler) addMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		CanisterID string `json:"canister_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	m, err := h.svc.Registry.AddCanisterMapping(r.Context(), req.Name, req.CanisterID)
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) getMapping(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Registry.GetCanisterID(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"canister_id": id})
}

func (h *Handler) listMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.svc.Registry.GetAllCanisterMappings(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mappings)
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	col, err := h.svc.Licenses.GetNFTCollection(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, col)
}

func (h *Handler) getUserNFTs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Principal  string   `json:"principal"`
		LicenseIDs []string `json:"license_ids"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	holdings, err := h.svc.Licenses.GetUserNFTs(r.Context(), req.Principal, req.LicenseIDs)
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, holdings)
}

func (h *Handler) buyLicense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Buyer        string `json:"buyer"`
		CollectionID string `json:"collection_id"`
		Quantity     int    `json:"quantity"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	records, err := h.svc.Licenses.BuyNFTLicense(r.Context(), req.Buyer, req.CollectionID, req.Quantity)
	if err != nil {
		// Units already transferred are reported despite the failure.
		h.log.WithError(err).Warn("license purchase incomplete")
		httputil.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"error":   err.Error(),
			"records": records,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) listUserLicenses(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Licenses.ListUserLicenses(r.Context(), mux.Vars(r)["principal"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

type voiceUploadRequest struct {
	Principal string               `json:"principal"`
	FolderID  string               `json:"folder_id"`
	FileID    string               `json:"file_id"`
	FileName  string               `json:"file_name"`
	Content   []byte               `json:"content"`
	Metadata  []voice.MetadataItem `json:"metadata"`
}

func (h *Handler) uploadVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceUploadRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	index, err := h.svc.Voice.UploadVoiceFile(r.Context(), voice.Asset{
		Principal: req.Principal,
		FolderID:  req.FolderID,
		FileID:    req.FileID,
		FileName:  req.FileName,
		Content:   req.Content,
		Metadata:  req.Metadata,
	})
	if err != nil {
		h.respondBadOr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"index": index})
}

func (h *Handler) deleteVoice(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		httputil.BadRequest(w, "index must be numeric")
		return
	}
	if err := h.svc.Voice.DeleteVoiceFile(r.Context(), index); err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) listVoice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prev, _ := strconv.ParseUint(q.Get("prev"), 10, 64)
	take, _ := strconv.Atoi(q.Get("take"))
	assets, err := h.svc.Voice.ListVoiceFiles(r.Context(), voice.ListFilter{
		Principal: q.Get("principal"),
		FolderID:  q.Get("folder_id"),
		Prev:      prev,
		Take:      take,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assets)
}

func (h *Handler) getVoice(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		httputil.BadRequest(w, "index must be numeric")
		return
	}
	asset, err := h.svc.Voice.GetVoiceFile(r.Context(), index)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}
