package registry

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
)

// numShards spreads tenants across independently locked shards. Power of two
// so the hash can be masked.
const numShards = 32

// owner records which (tenant, subject) pair a connection belongs to
type owner struct {
	tenantID  string
	subjectID string
}

// shard holds the tenant maps for a slice of the tenant keyspace
type shard struct {
	mu      sync.RWMutex
	tenants map[string]map[string]map[string]struct{}
}

// RegistryImpl implements the Registry interface
type RegistryImpl struct {
	shards [numShards]shard

	// Reverse index: connection id -> owning pair. Kept under its own lock;
	// it is an accelerator for hint-less removal, the shard maps remain the
	// source of truth.
	ownersMu sync.RWMutex
	owners   map[string]owner
}

// NewRegistry creates an empty connection registry
func NewRegistry() *RegistryImpl {
	r := &RegistryImpl{
		owners: make(map[string]owner),
	}
	for i := range r.shards {
		r.shards[i].tenants = make(map[string]map[string]map[string]struct{})
	}
	return r
}

// shardFor returns the shard owning a tenant id
func (r *RegistryImpl) shardFor(tenantID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	return &r.shards[h.Sum32()&(numShards-1)]
}

// AddConnection records a connection for a (tenant, subject) pair. Adding an
// already-present triple is a no-op. Re-adding a connection id under a
// different pair moves it rather than duplicating it, preserving single
// ownership.
func (r *RegistryImpl) AddConnection(tenantID, subjectID, connectionID string) {
	cur := owner{tenantID: tenantID, subjectID: subjectID}

	r.ownersMu.Lock()
	prev, existed := r.owners[connectionID]
	r.owners[connectionID] = cur
	r.ownersMu.Unlock()

	if existed && prev != cur {
		r.removeFrom(prev.tenantID, prev.subjectID, connectionID)
	}

	s := r.shardFor(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()

	subjects := s.tenants[tenantID]
	if subjects == nil {
		subjects = make(map[string]map[string]struct{})
		s.tenants[tenantID] = subjects
	}
	conns := subjects[subjectID]
	if conns == nil {
		conns = make(map[string]struct{})
		subjects[subjectID] = conns
	}
	conns[connectionID] = struct{}{}
}

// AddConnectionContext forwards to AddConnection after a cancellation check.
// The asynchronous call shapes exist for transport callbacks; they share the
// synchronous state machine and never diverge from it.
func (r *RegistryImpl) AddConnectionContext(ctx context.Context, tenantID, subjectID, connectionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.AddConnection(tenantID, subjectID, connectionID)
	return nil
}

// RemoveConnection removes a connection id. When tenant and subject hints are
// supplied removal is a direct lookup; otherwise the reverse index is
// consulted, and failing that every shard is scanned. Absent connections are
// a no-op.
func (r *RegistryImpl) RemoveConnection(connectionID, tenantID, subjectID string) {
	if tenantID == "" || subjectID == "" {
		if own, ok := r.lookupOwner(connectionID); ok {
			tenantID, subjectID = own.tenantID, own.subjectID
		} else if tenantID, subjectID, ok = r.scanFor(connectionID); !ok {
			return
		}
	}

	r.removeFrom(tenantID, subjectID, connectionID)

	r.ownersMu.Lock()
	if own, ok := r.owners[connectionID]; ok && own.tenantID == tenantID && own.subjectID == subjectID {
		delete(r.owners, connectionID)
	}
	r.ownersMu.Unlock()
}

// RemoveConnectionContext forwards to RemoveConnection after a cancellation check
func (r *RegistryImpl) RemoveConnectionContext(ctx context.Context, connectionID, tenantID, subjectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.RemoveConnection(connectionID, tenantID, subjectID)
	return nil
}

// removeFrom deletes a connection from one client entry, pruning the subject
// and tenant maps eagerly so no empty entries linger.
func (r *RegistryImpl) removeFrom(tenantID, subjectID, connectionID string) {
	s := r.shardFor(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()

	subjects, ok := s.tenants[tenantID]
	if !ok {
		return
	}
	conns, ok := subjects[subjectID]
	if !ok {
		return
	}
	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(subjects, subjectID)
	}
	if len(subjects) == 0 {
		delete(s.tenants, tenantID)
	}
}

// lookupOwner resolves a connection through the reverse index
func (r *RegistryImpl) lookupOwner(connectionID string) (owner, bool) {
	r.ownersMu.RLock()
	defer r.ownersMu.RUnlock()
	own, ok := r.owners[connectionID]
	return own, ok
}

// scanFor walks every shard looking for a connection id. Slow path; callers
// are expected to supply hints whenever the disconnect event carries them.
func (r *RegistryImpl) scanFor(connectionID string) (tenantID, subjectID string, found bool) {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for t, subjects := range s.tenants {
			for sub, conns := range subjects {
				if _, ok := conns[connectionID]; ok {
					s.mu.RUnlock()
					return t, sub, true
				}
			}
		}
		s.mu.RUnlock()
	}
	return "", "", false
}

// GetConnections returns a copy of the connection set for one client
func (r *RegistryImpl) GetConnections(tenantID, subjectID string) []string {
	s := r.shardFor(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := s.tenants[tenantID][subjectID]
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// GetConnectionsContext forwards to GetConnections after a cancellation check
func (r *RegistryImpl) GetConnectionsContext(ctx context.Context, tenantID, subjectID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.GetConnections(tenantID, subjectID), nil
}

// FindTenantConnections returns the union of connection ids for every client
// under a tenant. Connections owned by excludeSubjectID are left out when it
// is non-empty, so a broadcast does not echo back to the initiator's own
// sessions.
func (r *RegistryImpl) FindTenantConnections(tenantID, excludeSubjectID string) []string {
	s := r.shardFor(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects := s.tenants[tenantID]
	var out []string
	for sub, conns := range subjects {
		if excludeSubjectID != "" && sub == excludeSubjectID {
			continue
		}
		for id := range conns {
			out = append(out, id)
		}
	}
	return out
}

// FindTenantConnectionsContext forwards to FindTenantConnections after a cancellation check
func (r *RegistryImpl) FindTenantConnectionsContext(ctx context.Context, tenantID, excludeSubjectID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.FindTenantConnections(tenantID, excludeSubjectID), nil
}

// ConnectedClients enumerates every (tenant, subject) pair currently holding
// at least one connection. The result is a snapshot assembled shard by shard,
// sorted for stable diagnostics output.
func (r *RegistryImpl) ConnectedClients() []ClientKey {
	var out []ClientKey
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for t, subjects := range s.tenants {
			for sub, conns := range subjects {
				out = append(out, ClientKey{
					TenantID:    t,
					SubjectID:   sub,
					Connections: len(conns),
				})
			}
		}
		s.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out
}

// ConnectionCount returns the number of tracked connections
func (r *RegistryImpl) ConnectionCount() int {
	r.ownersMu.RLock()
	defer r.ownersMu.RUnlock()
	return len(r.owners)
}
