package types

import "strings"

// AssociationType describes the relation carried by an association edge
// between two thoughts
type AssociationType string

const (
	AssociationRelated  AssociationType = "related"
	AssociationSequence AssociationType = "sequence"
	AssociationCause    AssociationType = "cause"
	AssociationContrast AssociationType = "contrast"
)

// AllAssociationTypes returns all valid association types
func AllAssociationTypes() []AssociationType {
	return []AssociationType{
		AssociationRelated,
		AssociationSequence,
		AssociationCause,
		AssociationContrast,
	}
}

// IsValid checks if the association type is valid
func (t AssociationType) IsValid() bool {
	switch t {
	case AssociationRelated, AssociationSequence, AssociationCause, AssociationContrast:
		return true
	default:
		return false
	}
}

// String returns the string representation of the association type
func (t AssociationType) String() string {
	return string(t)
}

// ParseAssociationType parses a string into an AssociationType, falling
// back to AssociationRelated for unknown input
func ParseAssociationType(s string) AssociationType {
	t := AssociationType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return AssociationRelated
	}
	return t
}

func normalizeUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
