package identity

import "github.com/ki1r0y/gallery/common/store"

// Scope is the uniqueness domain a nametag is checked within: global for
// usernames, per-owner for composition nametags. A scope knows where its
// claim documents live and where the entity record behind a claimed id
// lives.
type Scope struct {
	prefix    string
	entityKey func(id string) string
}

// Members is the global username scope.
func Members() Scope {
	return Scope{
		prefix:    store.MemberNametagPrefix,
		entityKey: store.MemberKey,
	}
}

// CompositionsOf is the composition nametag scope of one owning member.
func CompositionsOf(ownerID string) Scope {
	return Scope{
		prefix:    store.CompositionNametagPrefix(ownerID),
		entityKey: store.CompositionKey,
	}
}

// ClaimKey returns the claim document key of nametag within the scope.
func (s Scope) ClaimKey(nametag string) string {
	return s.prefix + ":" + nametag
}

// EntityKey returns the record key of an entity id claimed in the scope.
func (s Scope) EntityKey(id string) string {
	return s.entityKey(id)
}

// Prefix returns the scope's claim-key prefix, for collection sweeps.
func (s Scope) Prefix() string {
	return s.prefix
}
