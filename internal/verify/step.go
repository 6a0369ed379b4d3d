package verify

// Step represents the step a verification workflow is positioned at
type Step uint8

const (
	// StepCollecting is the initial step; the subject identifier is still being collected
	StepCollecting Step = iota

	// StepChallengeIssued means the verification service has issued a one-time code to the subject
	StepChallengeIssued

	// StepCompleted means the challenge response was accepted and a verification result is available
	StepCompleted
)

// String returns the wire representation of the step
func (step Step) String() string {
	switch step {
	case StepChallengeIssued:
		return "challenge_issued"
	case StepCompleted:
		return "completed"
	default:
		return "collecting"
	}
}
