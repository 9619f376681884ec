// Package registry tracks which client identities are currently connected,
// under which tenant, over which transport connections.
//
// State is conceptually tenant -> subject -> set<connection id>. A client may
// hold several simultaneous connections (multiple devices or tabs); a
// connection belongs to exactly one (tenant, subject) pair at a time.
//
// The registry is safe for unbounded concurrent use. Tenants are spread
// across a fixed set of shards, each guarded by its own RWMutex, so add and
// remove traffic for unrelated tenants never contends. A reverse index from
// connection id to its owning (tenant, subject) pair makes hint-less removal
// O(1); a full scan remains as the fallback when the index misses.
//
// All read operations return point-in-time copies. Callers iterating a
// result are never affected by concurrent mutation.
package registry
