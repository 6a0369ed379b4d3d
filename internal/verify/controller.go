package verify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/skybi/verisuite/internal/store"
	"github.com/skybi/verisuite/internal/verifier"
)

var (
	// ErrCallInFlight is returned when an operation is started while another service call is still running
	ErrCallInFlight = errors.New("verify: another service call is already in flight")

	// ErrInvalidStep is returned when an operation is started from a step it is not valid in
	ErrInvalidStep = errors.New("verify: the operation is not valid in the current workflow step")

	// ErrNotAuthenticated is returned when the workflow is driven without a current bearer credential
	ErrNotAuthenticated = errors.New("verify: no bearer credential is available")

	// ErrMissingInput is returned when a required input value is empty
	ErrMissingInput = errors.New("verify: a required input value is empty")
)

// Generic inline failure messages; service and transport error details stay out of them
var (
	challengeFailedMessage  = "Failed to generate OTP. Please try again."
	submissionFailedMessage = "Failed to verify OTP."
)

// Persisted workflow shadow keys
var (
	keySubject     = "subject"
	keyChallenge   = "otp"
	keyReferenceID = "ref_id"
	keySubmitted   = "submitted"
	keyResult      = "result"
)

// ChallengeService covers the two step-advancing calls against the verification service
type ChallengeService interface {
	// GenerateOTP requests a one-time code for a subject and returns the correlating reference handle
	GenerateOTP(ctx context.Context, credential, subjectID string) (string, error)

	// SubmitOTP submits a one-time code together with its reference handle
	SubmitOTP(ctx context.Context, credential, otp, referenceID string) (*verifier.Result, error)
}

// CredentialSource provides the bearer credential of the current session
type CredentialSource interface {
	Credential() (string, bool)
}

// Exporter renders a verification result into a downloadable artifact
type Exporter interface {
	// Export renders the given result and returns the name of the produced artifact
	Export(result *verifier.Result, subjectID string) (string, error)
}

// Snapshot is a point-in-time copy of the workflow state
type Snapshot struct {
	Step              Step
	SubjectID         string
	ChallengeResponse string
	ReferenceID       string
	Result            *verifier.Result
	LastError         string
}

// Controller owns the step state of a single verification workflow.
// Every field mutation is mirrored into a namespaced key-value store so that a process restart resumes the workflow
// mid-flow. The workflow is exclusively owned by this controller instance and never shared.
type Controller struct {
	id          string
	store       store.Store
	service     ChallengeService
	credentials CredentialSource
	exporter    Exporter

	mu         sync.Mutex
	busy       bool
	generation uint64

	step        Step
	subjectID   string
	challenge   string
	referenceID string
	result      *verifier.Result
	lastError   string
}

// NewController creates a new verification workflow controller
func NewController(kv store.Store, service ChallengeService, credentials CredentialSource, exporter Exporter) *Controller {
	return &Controller{
		id:          uuid.NewString(),
		store:       kv,
		service:     service,
		credentials: credentials,
		exporter:    exporter,
	}
}

// Restore resumes a previously persisted workflow out of its shadow.
// If no bearer credential is currently available, the shadow cannot belong to the current session anymore and is
// discarded instead of resumed.
func (controller *Controller) Restore(ctx context.Context) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	if _, ok := controller.credentials.Credential(); !ok {
		return controller.reset(ctx)
	}

	subjectID, _, err := controller.store.Get(ctx, keySubject)
	if err != nil {
		return err
	}
	controller.subjectID = subjectID

	challenge, _, err := controller.store.Get(ctx, keyChallenge)
	if err != nil {
		return err
	}
	controller.challenge = challenge

	rawResult, ok, err := controller.store.Get(ctx, keyResult)
	if err != nil {
		return err
	}
	if ok {
		result := new(verifier.Result)
		if err := json.Unmarshal([]byte(rawResult), result); err == nil {
			controller.result = result
			controller.referenceID = result.ReferenceID
			controller.step = StepCompleted
			return nil
		}
		// A shadow copy that cannot be decoded anymore is worthless; start over
		log.Warn().Str("workflow", controller.id).Msg("discarding an undecodable verification result shadow")
		return controller.reset(ctx)
	}

	submitted, _, err := controller.store.Get(ctx, keySubmitted)
	if err != nil {
		return err
	}
	referenceID, _, err := controller.store.Get(ctx, keyReferenceID)
	if err != nil {
		return err
	}
	if submitted == "true" {
		if referenceID == "" {
			// An issued challenge without its reference handle cannot be submitted anymore
			return controller.reset(ctx)
		}
		controller.referenceID = referenceID
		controller.step = StepChallengeIssued
	}
	return nil
}

// RequestChallenge asks the verification service to issue a one-time code for the given subject identifier.
// On success the workflow advances to StepChallengeIssued; on any failure it stays in StepCollecting with a generic
// inline error message and may be retried by the user. At most one service call may be in flight at a time.
func (controller *Controller) RequestChallenge(ctx context.Context, subjectID string) error {
	controller.mu.Lock()
	if controller.busy {
		controller.mu.Unlock()
		return ErrCallInFlight
	}
	if controller.step != StepCollecting {
		controller.mu.Unlock()
		return ErrInvalidStep
	}
	if subjectID == "" {
		controller.mu.Unlock()
		return ErrMissingInput
	}
	credential, ok := controller.credentials.Credential()
	if !ok {
		controller.mu.Unlock()
		return ErrNotAuthenticated
	}

	controller.busy = true
	generation := controller.generation
	controller.subjectID = subjectID
	if err := controller.persist(ctx, keySubject, subjectID); err != nil {
		controller.busy = false
		controller.mu.Unlock()
		return err
	}
	controller.mu.Unlock()

	referenceID, err := controller.service.GenerateOTP(ctx, credential, subjectID)

	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.busy = false

	// The workflow may have been reset or torn down while the call was running
	if controller.generation != generation {
		return nil
	}

	if err != nil {
		log.Debug().Err(err).Str("workflow", controller.id).Msg("the challenge request failed")
		controller.lastError = challengeFailedMessage
		return nil
	}

	controller.referenceID = referenceID
	controller.step = StepChallengeIssued
	controller.lastError = ""
	if err := controller.persist(ctx, keyReferenceID, referenceID); err != nil {
		return err
	}
	return controller.persist(ctx, keySubmitted, "true")
}

// SubmitChallengeResponse submits the one-time code the user received.
// On a valid code the workflow stores the verification result and advances to StepCompleted; on any failure it stays
// in StepChallengeIssued with a generic inline error message, so the user may resubmit a corrected code without
// re-requesting a challenge. At most one service call may be in flight at a time.
func (controller *Controller) SubmitChallengeResponse(ctx context.Context, challengeResponse string) error {
	controller.mu.Lock()
	if controller.busy {
		controller.mu.Unlock()
		return ErrCallInFlight
	}
	if controller.step != StepChallengeIssued {
		controller.mu.Unlock()
		return ErrInvalidStep
	}
	if challengeResponse == "" {
		controller.mu.Unlock()
		return ErrMissingInput
	}
	credential, ok := controller.credentials.Credential()
	if !ok {
		controller.mu.Unlock()
		return ErrNotAuthenticated
	}

	controller.busy = true
	generation := controller.generation
	referenceID := controller.referenceID
	controller.challenge = challengeResponse
	if err := controller.persist(ctx, keyChallenge, challengeResponse); err != nil {
		controller.busy = false
		controller.mu.Unlock()
		return err
	}
	controller.mu.Unlock()

	result, err := controller.service.SubmitOTP(ctx, credential, challengeResponse, referenceID)

	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.busy = false

	if controller.generation != generation {
		return nil
	}

	if err != nil || result == nil || !result.Valid() {
		if err != nil {
			log.Debug().Err(err).Str("workflow", controller.id).Msg("the challenge submission failed")
		}
		controller.lastError = submissionFailedMessage
		return nil
	}

	controller.result = result
	controller.step = StepCompleted
	controller.lastError = ""

	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return controller.persist(ctx, keyResult, string(raw))
}

// Reset clears all workflow fields, deletes the persisted shadow copy and returns to StepCollecting.
// It is usable from any step and is the only way out of StepCompleted.
func (controller *Controller) Reset(ctx context.Context) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.reset(ctx)
}

// ExportResult renders the verification result into a downloadable artifact and returns its name.
// It is a no-op unless the workflow is completed and the result carries a display name; the boolean return value
// indicates whether an artifact was produced.
func (controller *Controller) ExportResult() (string, bool, error) {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	if controller.step != StepCompleted || controller.result == nil || controller.result.Name == "" {
		return "", false, nil
	}
	name, err := controller.exporter.Export(controller.result, controller.subjectID)
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// Snapshot returns a point-in-time copy of the workflow state
func (controller *Controller) Snapshot() Snapshot {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return Snapshot{
		Step:              controller.step,
		SubjectID:         controller.subjectID,
		ChallengeResponse: controller.challenge,
		ReferenceID:       controller.referenceID,
		Result:            controller.result,
		LastError:         controller.lastError,
	}
}

// Close tears the workflow down.
// The persisted shadow copy is deleted and the completion of a possibly in-flight service call is invalidated.
func (controller *Controller) Close(ctx context.Context) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.reset(ctx)
}

func (controller *Controller) reset(ctx context.Context) error {
	controller.generation++
	controller.step = StepCollecting
	controller.subjectID = ""
	controller.challenge = ""
	controller.referenceID = ""
	controller.result = nil
	controller.lastError = ""

	for _, key := range []string{keySubject, keyChallenge, keyReferenceID, keySubmitted, keyResult} {
		if err := controller.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// persist mirrors a single field into the shadow store.
// An empty value removes the key entirely so that a restart never resurrects stale values.
func (controller *Controller) persist(ctx context.Context, key, value string) error {
	if value == "" {
		return controller.store.Delete(ctx, key)
	}
	return controller.store.Set(ctx, key, value)
}
