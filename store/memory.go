package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evoflow/evoflow/types"
)

// MemoryStore is an in-memory Store used by tests and embedded setups.
// It mirrors the GormStore's read semantics, including newest-active-wins
// resolution during the version-swap window.
type MemoryStore struct {
	mu         sync.RWMutex
	plugins    map[string]*types.Plugin
	versions   map[string]*types.AgentVersion
	executions []types.ExecutionRecord
	votes      []types.VoteRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plugins:  make(map[string]*types.Plugin),
		versions: make(map[string]*types.AgentVersion),
	}
}

// SeedPlugin inserts a plugin directly, generating an id if needed.
func (s *MemoryStore) SeedPlugin(p *types.Plugin) *types.Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	s.plugins[p.ID] = &cp
	return p
}

func (s *MemoryStore) GetPlugin(_ context.Context, id string) (*types.Plugin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plugins[id]
	if !ok {
		return nil, types.NewNotFoundError("plugin", id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) FindPlugins(_ context.Context, filter PluginFilter) ([]types.Plugin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := map[string]bool{}
	for _, id := range filter.IDs {
		idSet[id] = true
	}

	var out []types.Plugin
	for _, p := range s.plugins {
		if len(idSet) > 0 && !idSet[p.ID] {
			continue
		}
		if filter.TenantID != "" && p.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.MinXP > 0 && p.XP < filter.MinXP {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AddPluginXP(_ context.Context, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plugins[id]
	if !ok {
		return types.NewNotFoundError("plugin", id)
	}
	p.XP += delta
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetAgentVersion(_ context.Context, id string) (*types.AgentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, types.NewNotFoundError("agent version", id)
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) ActiveAgentVersion(_ context.Context, pluginID string) (*types.AgentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *types.AgentVersion
	for _, v := range s.versions {
		if v.PluginID != pluginID || v.Status != types.VersionStatusActive {
			continue
		}
		if newest == nil || v.CreatedAt.After(newest.CreatedAt) {
			newest = v
		}
	}
	if newest == nil {
		return nil, types.NewNotFoundError("active agent version for plugin", pluginID)
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) FindAgentVersions(_ context.Context, pluginID string) ([]types.AgentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.AgentVersion
	for _, v := range s.versions {
		if v.PluginID == pluginID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s *MemoryStore) InsertAgentVersion(_ context.Context, v *types.AgentVersion) error {
	if v.PluginID == "" {
		return types.NewValidationError("agent version requires a plugin id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	cp := *v
	s.versions[v.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateAgentVersionStatus(_ context.Context, id string, status types.VersionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return types.NewNotFoundError("agent version", id)
	}
	v.Status = status
	v.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AddAgentVersionXP(_ context.Context, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return types.NewNotFoundError("agent version", id)
	}
	v.XP += delta
	v.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AddVoteCount(_ context.Context, id string, vote types.VoteType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return types.NewNotFoundError("agent version", id)
	}
	if vote == types.VoteTypeDown {
		v.Downvotes++
	} else {
		v.Upvotes++
	}
	v.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) InsertExecution(_ context.Context, rec *types.ExecutionRecord) error {
	if rec.PluginID == "" {
		return types.NewValidationError("execution record requires a plugin id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.executions = append(s.executions, *rec)
	return nil
}

func (s *MemoryStore) FindExecutions(_ context.Context, agentVersionID string) ([]types.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ExecutionRecord
	for _, rec := range s.executions {
		if rec.AgentVersionID == agentVersionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountExecutionFailures(_ context.Context, agentVersionID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, rec := range s.executions {
		if rec.AgentVersionID == agentVersionID && rec.Status == types.ExecutionStatusFailure {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) InsertVote(_ context.Context, rec *types.VoteRecord) error {
	if rec.AgentVersionID == "" {
		return types.NewValidationError("vote record requires an agent version id")
	}
	if rec.Type != types.VoteTypeUp && rec.Type != types.VoteTypeDown {
		return types.NewValidationError("vote type must be up or down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.votes = append(s.votes, *rec)
	return nil
}

func (s *MemoryStore) FindVotes(_ context.Context, agentVersionID string) ([]types.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.VoteRecord
	for _, rec := range s.votes {
		if rec.AgentVersionID == agentVersionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
