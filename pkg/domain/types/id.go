package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// MemoryID identifies a thought. IDs are either UUID v7 (time ordered) or
// derived deterministically from content and namespace for idempotent
// re-stores.
type MemoryID string

// NewMemoryID generates a new UUID v7 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.Must(uuid.NewV7()).String())
}

// DeriveMemoryID computes a content-addressed MemoryID from namespace and
// content. The same content in the same namespace always yields the same
// ID, so repeated stores are idempotent.
func DeriveMemoryID(ns Namespace, content string) MemoryID {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s", ns, content))
	return MemoryID(hex.EncodeToString(sum[:16]))
}

// String returns the string representation of the memory ID
func (id MemoryID) String() string {
	return string(id)
}

// CIID identifies the agent (cognitive identity) that owns an operation
type CIID string

// DefaultCIID is used when a caller does not identify itself
const DefaultCIID CIID = "system"

// String returns the string representation of the CI ID
func (id CIID) String() string {
	return string(id)
}

// OrDefault returns the ID, or DefaultCIID when empty
func (id CIID) OrDefault() CIID {
	if id == "" {
		return DefaultCIID
	}
	return id
}

// Namespace is a logical partition for thoughts (e.g. one per agent).
// Backends may use it for isolation; the engine treats it as opaque.
type Namespace string

// DefaultNamespace is used when a caller does not specify a namespace
const DefaultNamespace Namespace = "esr"

// String returns the string representation of the namespace
func (ns Namespace) String() string {
	return string(ns)
}

// OrDefault returns the namespace, or DefaultNamespace when empty
func (ns Namespace) OrDefault() Namespace {
	if ns == "" {
		return DefaultNamespace
	}
	return ns
}
