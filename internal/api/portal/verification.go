package portal

import (
	"errors"
	"net/http"

	"github.com/skybi/verisuite/internal/api/schema"
	"github.com/skybi/verisuite/internal/verifier"
	"github.com/skybi/verisuite/internal/verify"
)

type workflowResponse struct {
	Step              string           `json:"step"`
	SubjectID         string           `json:"subject_id,omitempty"`
	ChallengeResponse string           `json:"otp,omitempty"`
	ReferenceID       string           `json:"reference_id,omitempty"`
	Result            *verifier.Result `json:"result,omitempty"`
	LastError         string           `json:"last_error,omitempty"`
}

func buildWorkflowResponse(snapshot verify.Snapshot) workflowResponse {
	return workflowResponse{
		Step:              snapshot.Step.String(),
		SubjectID:         snapshot.SubjectID,
		ChallengeResponse: snapshot.ChallengeResponse,
		ReferenceID:       snapshot.ReferenceID,
		Result:            snapshot.Result,
		LastError:         snapshot.LastError,
	}
}

// writeWorkflowError maps the precondition errors of the workflow controller to unified API errors
func (service *Service) writeWorkflowError(writer http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verify.ErrCallInFlight):
		service.writer.WriteErrors(writer, http.StatusConflict, schema.ErrOperationInFlight)
	case errors.Is(err, verify.ErrInvalidStep), errors.Is(err, verify.ErrMissingInput):
		service.writer.WriteErrors(writer, http.StatusBadRequest, schema.ErrInvalidWorkflowStep)
	case errors.Is(err, verify.ErrNotAuthenticated):
		service.writer.WriteErrors(writer, http.StatusUnauthorized, schema.ErrUnauthorized)
	default:
		service.writer.WriteInternalError(writer, err)
	}
}

// EndpointGetWorkflow handles the 'GET /v1/verifications/aadhaar' endpoint
func (service *Service) EndpointGetWorkflow(writer http.ResponseWriter, _ *http.Request) {
	service.writer.WriteJSON(writer, buildWorkflowResponse(service.Workflow.Snapshot()))
}

type endpointRequestChallengeRequestPayload struct {
	SubjectID *string `json:"aadhaar_number" required:"true"`
}

// EndpointRequestChallenge handles the 'POST /v1/verifications/aadhaar/otp' endpoint
func (service *Service) EndpointRequestChallenge(writer http.ResponseWriter, request *http.Request) {
	payload, validationErrs, err := schema.UnmarshalBody[endpointRequestChallengeRequestPayload](request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	if err := service.Workflow.RequestChallenge(request.Context(), *payload.SubjectID); err != nil {
		service.writeWorkflowError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, buildWorkflowResponse(service.Workflow.Snapshot()))
}

type endpointSubmitChallengeRequestPayload struct {
	OTP *string `json:"otp" required:"true"`
}

// EndpointSubmitChallenge handles the 'POST /v1/verifications/aadhaar/submit' endpoint
func (service *Service) EndpointSubmitChallenge(writer http.ResponseWriter, request *http.Request) {
	payload, validationErrs, err := schema.UnmarshalBody[endpointSubmitChallengeRequestPayload](request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	if err := service.Workflow.SubmitChallengeResponse(request.Context(), *payload.OTP); err != nil {
		service.writeWorkflowError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, buildWorkflowResponse(service.Workflow.Snapshot()))
}

// EndpointResetWorkflow handles the 'POST /v1/verifications/aadhaar/reset' endpoint
func (service *Service) EndpointResetWorkflow(writer http.ResponseWriter, request *http.Request) {
	if err := service.Workflow.Reset(request.Context()); err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, buildWorkflowResponse(service.Workflow.Snapshot()))
}

type endpointExportResultResponse struct {
	Exported bool   `json:"exported"`
	Filename string `json:"filename,omitempty"`
}

// EndpointExportResult handles the 'POST /v1/verifications/aadhaar/export' endpoint.
// Exporting is silently disabled unless a completed result with a display name is available.
func (service *Service) EndpointExportResult(writer http.ResponseWriter, _ *http.Request) {
	filename, ok, err := service.Workflow.ExportResult()
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, endpointExportResultResponse{
		Exported: ok,
		Filename: filename,
	})
}
