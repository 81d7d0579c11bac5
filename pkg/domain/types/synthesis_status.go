package types

// SynthesisStatus is the outcome of merging backend responses on recall
type SynthesisStatus string

const (
	SynthesisSuccess SynthesisStatus = "success"
	SynthesisNoData  SynthesisStatus = "no_data"
	SynthesisError   SynthesisStatus = "error"
)

// IsValid checks if the synthesis status is valid
func (s SynthesisStatus) IsValid() bool {
	switch s {
	case SynthesisSuccess, SynthesisNoData, SynthesisError:
		return true
	default:
		return false
	}
}

// String returns the string representation of the synthesis status
func (s SynthesisStatus) String() string {
	return string(s)
}
