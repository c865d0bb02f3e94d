// Package discriminator computes and matches the 8-byte type prefixes that tag
// instruction data, account data and emitted events.
//
// Prefixes follow the Anchor convention: the first eight bytes of
// sha256("<namespace>:<name>"), where namespace is "global" for instructions,
// "account" for account records and "event" for events.
package discriminator

import (
	"crypto/sha256"
	"fmt"
)

// Size is the length of a discriminator in bytes.
const Size = 8

const (
	namespaceInstruction = "global"
	namespaceAccount     = "account"
	namespaceEvent       = "event"
)

// Discriminator is an 8-byte type prefix.
type Discriminator [Size]byte

// New hashes namespace and name into a discriminator.
func New(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:Size])
	return d
}

// ForInstruction returns the discriminator of an instruction handler name
// such as "lend" or "create_pool_1".
func ForInstruction(name string) Discriminator {
	return New(namespaceInstruction, name)
}

// ForAccount returns the discriminator of an account type name such as "Pool".
func ForAccount(name string) Discriminator {
	return New(namespaceAccount, name)
}

// ForEvent returns the discriminator of an event type name.
func ForEvent(name string) Discriminator {
	return New(namespaceEvent, name)
}

// FromBytes reads the leading discriminator of data.
func FromBytes(data []byte) (Discriminator, error) {
	var d Discriminator
	if len(data) < Size {
		return d, fmt.Errorf("data too short for discriminator: %d bytes", len(data))
	}
	copy(d[:], data[:Size])
	return d, nil
}

// Bytes returns the discriminator as a byte slice.
func (d Discriminator) Bytes() []byte {
	return d[:]
}

// Prefix returns data with the discriminator prepended.
func (d Discriminator) Prefix(data []byte) []byte {
	out := make([]byte, 0, Size+len(data))
	out = append(out, d[:]...)
	return append(out, data...)
}

// Matcher resolves discriminators to the index they were registered at.
type Matcher struct {
	index map[Discriminator]int
	names []string
}

// NewMatcher builds a matcher for the given names using hash. Registering two
// names that hash to the same discriminator is rejected.
func NewMatcher(hash func(string) Discriminator, names ...string) (*Matcher, error) {
	m := &Matcher{
		index: make(map[Discriminator]int, len(names)),
		names: make([]string, 0, len(names)),
	}
	for _, name := range names {
		d := hash(name)
		if prev, exists := m.index[d]; exists {
			return nil, fmt.Errorf("discriminator collision between %q and %q", m.names[prev], name)
		}
		m.index[d] = len(m.names)
		m.names = append(m.names, name)
	}
	return m, nil
}

// MustNewMatcher is NewMatcher that panics on collision.
func MustNewMatcher(hash func(string) Discriminator, names ...string) *Matcher {
	m, err := NewMatcher(hash, names...)
	if err != nil {
		panic(err)
	}
	return m
}

// Match returns the registered name for target, or false.
func (m *Matcher) Match(target Discriminator) (string, bool) {
	idx, exists := m.index[target]
	if !exists {
		return "", false
	}
	return m.names[idx], true
}

// MatchData splits data into its registered name and payload.
func (m *Matcher) MatchData(data []byte) (string, []byte, error) {
	d, err := FromBytes(data)
	if err != nil {
		return "", nil, err
	}
	name, ok := m.Match(d)
	if !ok {
		return "", nil, fmt.Errorf("unknown discriminator %x", d[:])
	}
	return name, data[Size:], nil
}

// Len returns the number of registered discriminators.
func (m *Matcher) Len() int {
	return len(m.names)
}
