// Package registry manages the logical-name to canister-id directory.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// Service manages canister mappings. Collaborator flows resolve
// endpoints through it at call time, so remappings need no restart.
type Service struct {
	store storage.RegistryStore
	log   *logger.Logger
}

// New constructs a registry service.
func New(store storage.RegistryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{store: store, log: log}
}

// AddCanisterMapping inserts or overwrites one mapping.
func (s *Service) AddCanisterMapping(ctx context.Context, name, canisterID string) (registry.Mapping, error) {
	name = strings.TrimSpace(name)
	canisterID = strings.TrimSpace(canisterID)
	if name == "" || canisterID == "" {
		return registry.Mapping{}, fmt.Errorf("name and canister_id are required")
	}

	m := registry.Mapping{Name: name, CanisterID: canisterID, UpdatedAt: time.Now().UTC()}
	if err := s.store.PutMapping(ctx, m); err != nil {
		return registry.Mapping{}, err
	}
	s.log.WithField("name", name).
		WithField("canister_id", canisterID).
		Info("canister mapping stored")
	return m, nil
}

// GetCanisterID resolves one logical name.
func (s *Service) GetCanisterID(ctx context.Context, name string) (string, error) {
	m, err := s.store.GetMapping(ctx, strings.TrimSpace(name))
	if err != nil {
		return "", err
	}
	return m.CanisterID, nil
}

// GetAllCanisterMappings lists the directory.
func (s *Service) GetAllCanisterMappings(ctx context.Context) ([]registry.Mapping, error) {
	return s.store.ListMappings(ctx)
}

// Endpoint implements chain.Resolver over the directory.
func (s *Service) Endpoint(ctx context.Context, name string) (string, error) {
	return s.GetCanisterID(ctx, name)
}
