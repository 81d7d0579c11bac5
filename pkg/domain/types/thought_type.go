package types

// ThoughtType classifies a thought stored in the memory engine
type ThoughtType string

const (
	ThoughtTypeIdea        ThoughtType = "IDEA"
	ThoughtTypeInsight     ThoughtType = "INSIGHT"
	ThoughtTypeObservation ThoughtType = "OBSERVATION"
	ThoughtTypeMemory      ThoughtType = "MEMORY"
	ThoughtTypeDecision    ThoughtType = "DECISION"
	ThoughtTypeFact        ThoughtType = "FACT"
	ThoughtTypeOpinion     ThoughtType = "OPINION"
	ThoughtTypeQuestion    ThoughtType = "QUESTION"
	ThoughtTypeAnswer      ThoughtType = "ANSWER"
	ThoughtTypePlan        ThoughtType = "PLAN"
	ThoughtTypeReflection  ThoughtType = "REFLECTION"
	ThoughtTypeFeeling     ThoughtType = "FEELING"
)

// AllThoughtTypes returns all valid thought types
func AllThoughtTypes() []ThoughtType {
	return []ThoughtType{
		ThoughtTypeIdea,
		ThoughtTypeInsight,
		ThoughtTypeObservation,
		ThoughtTypeMemory,
		ThoughtTypeDecision,
		ThoughtTypeFact,
		ThoughtTypeOpinion,
		ThoughtTypeQuestion,
		ThoughtTypeAnswer,
		ThoughtTypePlan,
		ThoughtTypeReflection,
		ThoughtTypeFeeling,
	}
}

// IsValid checks if the thought type is valid
func (t ThoughtType) IsValid() bool {
	switch t {
	case ThoughtTypeIdea,
		ThoughtTypeInsight,
		ThoughtTypeObservation,
		ThoughtTypeMemory,
		ThoughtTypeDecision,
		ThoughtTypeFact,
		ThoughtTypeOpinion,
		ThoughtTypeQuestion,
		ThoughtTypeAnswer,
		ThoughtTypePlan,
		ThoughtTypeReflection,
		ThoughtTypeFeeling:
		return true
	default:
		return false
	}
}

// String returns the string representation of the thought type
func (t ThoughtType) String() string {
	return string(t)
}

// ParseThoughtType parses a string into a ThoughtType. Unknown or empty
// input falls back to ThoughtTypeMemory rather than failing, so callers
// can always classify a thought.
func ParseThoughtType(s string) ThoughtType {
	t := ThoughtType(normalizeUpper(s))
	if !t.IsValid() {
		return ThoughtTypeMemory
	}
	return t
}
