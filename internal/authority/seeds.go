// Package authority derives the deterministic, keyless addresses the lending
// protocol uses for its records, mints, custody balances and signing
// authorities.
//
// An address is derived from an ordered list of seeds (entity keys plus a
// one-byte role tag) and a program id. A bump byte is appended and searched
// downward from 255 until the result lies off the ed25519 curve, so no private
// key can ever exist for it; the owning program "signs" for the address by
// presenting the same seeds again.
package authority

import (
	"fmt"
)

// Role tags appended as the last seed of role-scoped addresses.
const (
	TagAuthority    = "a"
	TagCashPool     = "b"
	TagLendingToken = "e"
	TagCashToken    = "f"
	TagScashToken   = "g"
)

// Role names a derived capability and the tag that scopes it.
type Role struct {
	Name string
	Tag  string
}

// Roles used by the protocol.
var (
	RoleAuthority    = Role{Name: "authority", Tag: TagAuthority}
	RoleCashPool     = Role{Name: "cash_pool", Tag: TagCashPool}
	RoleLendingToken = Role{Name: "lending_token", Tag: TagLendingToken}
	RoleCashToken    = Role{Name: "cash_token", Tag: TagCashToken}
	RoleScashToken   = Role{Name: "scash_token", Tag: TagScashToken}
)

// Registry is a set of roles whose tags are known not to collide.
type Registry struct {
	byTag  map[string]Role
	byName map[string]Role
}

// NewRegistry returns a registry of roles. Every tag must be exactly one byte
// and unique, and every name must be unique.
func NewRegistry(roles ...Role) (*Registry, error) {
	r := &Registry{
		byTag:  make(map[string]Role, len(roles)),
		byName: make(map[string]Role, len(roles)),
	}
	for _, role := range roles {
		if len(role.Tag) != 1 {
			return nil, fmt.Errorf("role %q: tag must be one byte, got %q", role.Name, role.Tag)
		}
		if prev, ok := r.byTag[role.Tag]; ok {
			return nil, fmt.Errorf("role %q: tag %q already used by %q", role.Name, role.Tag, prev.Name)
		}
		if _, ok := r.byName[role.Name]; ok {
			return nil, fmt.Errorf("role %q registered twice", role.Name)
		}
		r.byTag[role.Tag] = role
		r.byName[role.Name] = role
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(roles ...Role) *Registry {
	r, err := NewRegistry(roles...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry holds the protocol's roles.
var DefaultRegistry = MustNewRegistry(
	RoleAuthority,
	RoleCashPool,
	RoleLendingToken,
	RoleCashToken,
	RoleScashToken,
)

// Lookup returns the role registered under name.
func (r *Registry) Lookup(name string) (Role, bool) {
	role, ok := r.byName[name]
	return role, ok
}

// Seed returns the role tag as a seed component.
func (role Role) Seed() []byte {
	return []byte(role.Tag)
}
