// Package app wires the services to their stores and collaborators and
// manages their lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yangsenessa/univoice-dapp/internal/app/system"
	"github.com/yangsenessa/univoice-dapp/internal/chain"
	"github.com/yangsenessa/univoice-dapp/internal/metrics"
	infosvc "github.com/yangsenessa/univoice-dapp/internal/services/info"
	licensesvc "github.com/yangsenessa/univoice-dapp/internal/services/license"
	profilesvc "github.com/yangsenessa/univoice-dapp/internal/services/profile"
	registrysvc "github.com/yangsenessa/univoice-dapp/internal/services/registry"
	rewardsvc "github.com/yangsenessa/univoice-dapp/internal/services/reward"
	tasksvc "github.com/yangsenessa/univoice-dapp/internal/services/task"
	voicesvc "github.com/yangsenessa/univoice-dapp/internal/services/voice"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/internal/storage/memory"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Info     storage.InfoStore
	Profiles storage.ProfileStore
	Rewards  storage.RewardStore
	Tasks    storage.TaskStore
	Registry storage.RegistryStore
	Voice    storage.VoiceStore
	Licenses storage.LicenseStore
}

// Options tune optional collaborators.
type Options struct {
	Cache          *redis.Client
	ChainTimeout   time.Duration
	Checkpointer   Checkpointer
	CheckpointSpec string
	Metrics        *metrics.Metrics
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Info     *infosvc.Service
	Profiles *profilesvc.Service
	Rewards  *rewardsvc.Service
	Tasks    *tasksvc.Service
	Registry *registrysvc.Service
	Licenses *licensesvc.Service
	Voice    *voicesvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Info == nil {
		stores.Info = mem
	}
	if stores.Profiles == nil {
		stores.Profiles = mem
	}
	if stores.Rewards == nil {
		stores.Rewards = mem
	}
	if stores.Tasks == nil {
		stores.Tasks = mem
	}
	if stores.Registry == nil {
		stores.Registry = mem
	}
	if stores.Voice == nil {
		stores.Voice = mem
	}
	if stores.Licenses == nil {
		stores.Licenses = mem
	}

	manager := system.NewManager()

	registryService := registrysvc.New(stores.Registry, log)
	rpc, err := chain.NewClient(registryService, chain.Config{Timeout: opts.ChainTimeout})
	if err != nil {
		return nil, fmt.Errorf("configure rpc client: %w", err)
	}
	ledger := chain.NewRPCLedger(rpc)
	nftRegistry := chain.NewRPCNFTRegistry(rpc)

	infoService := infosvc.New(stores.Info, opts.Cache, log)
	profileService := profilesvc.New(stores.Profiles, log)
	rewardService := rewardsvc.New(stores.Rewards, stores.Profiles, ledger, log)
	taskService := tasksvc.New(stores.Tasks, stores.Rewards, stores.Profiles, log)
	licenseService := licensesvc.New(stores.Licenses, infoService, nftRegistry, log)
	voiceService := voicesvc.New(stores.Voice, log)

	if opts.Metrics != nil {
		rewardService.SetMetrics(opts.Metrics)
		taskService.SetMetrics(opts.Metrics)
	}

	if opts.Checkpointer != nil {
		runner := NewCheckpointRunner(opts.Checkpointer, opts.CheckpointSpec, opts.Metrics, log)
		if err := manager.Register(runner); err != nil {
			return nil, fmt.Errorf("register %s: %w", runner.Name(), err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		Info:     infoService,
		Profiles: profileService,
		Rewards:  rewardService,
		Tasks:    taskService,
		Registry: registryService,
		Licenses: licenseService,
		Voice:    voiceService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start seeds the one-shot quests and begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Tasks.EnsureDefaultQuests(ctx); err != nil {
		return fmt.Errorf("seed quests: %w", err)
	}
	return a.manager.Start(ctx)
}

// Stop stops all registered services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
