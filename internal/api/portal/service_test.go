package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skybi/verisuite/internal/clock"
	"github.com/skybi/verisuite/internal/config"
	"github.com/skybi/verisuite/internal/document"
	"github.com/skybi/verisuite/internal/session"
	"github.com/skybi/verisuite/internal/store"
	"github.com/skybi/verisuite/internal/store/inmem"
	"github.com/skybi/verisuite/internal/verifier"
	"github.com/skybi/verisuite/internal/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExporter struct{}

func (stubExporter) Export(result *verifier.Result, subjectID string) (string, error) {
	return document.Filename(subjectID, result.Name), nil
}

// newTestAPI assembles a portal API over an in-memory store and a stubbed upstream verification service
func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/token":
			json.NewEncoder(writer).Encode(map[string]string{"credentials": "app-1"})
		case "/aadhaar/generateotp":
			json.NewEncoder(writer).Encode(map[string]string{"status": "SUCCESS", "refId": "R1"})
		case "/aadhaar/submit":
			json.NewEncoder(writer).Encode(map[string]string{"status": "VALID", "refId": "R1", "name": "Jane Doe"})
		default:
			http.NotFound(writer, request)
		}
	}))
	t.Cleanup(upstream.Close)

	driver := inmem.New()
	require.NoError(t, driver.Initialize(context.Background()))

	client := verifier.New(upstream.URL)
	sessionController := session.NewController(store.Namespace(driver, "session"), clock.System{}, client, 15*time.Minute)
	workflowController := verify.NewController(store.Namespace(driver, "verify.aadhaar"), client, sessionController, stubExporter{})

	service := &Service{
		Config: &config.Config{
			PortalAPIAllowedOrigin: "*",
		},
		Session:  sessionController,
		Workflow: workflowController,
	}
	server := httptest.NewServer(service.Router())
	t.Cleanup(server.Close)
	return server
}

func post(t *testing.T, server *httptest.Server, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	response, err := http.Post(server.URL+path, "application/json", &body)
	require.NoError(t, err)
	defer response.Body.Close()
	decoded := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&decoded))
	return response, decoded
}

func TestWorkflowEndpointsRequireSession(t *testing.T) {
	server := newTestAPI(t)

	response, _ := post(t, server, "/v1/verifications/aadhaar/otp", map[string]string{"aadhaar_number": "123412341234"})
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

	getResponse, err := http.Get(server.URL + "/v1/verifications/aadhaar")
	require.NoError(t, err)
	getResponse.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, getResponse.StatusCode)
}

func TestAuthCallbackValidation(t *testing.T) {
	server := newTestAPI(t)

	response, _ := post(t, server, "/v1/auth/callback", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestVerificationScenario(t *testing.T) {
	server := newTestAPI(t)

	// Authenticate via the identity-provider callback
	response, body := post(t, server, "/v1/auth/callback", map[string]string{"credential": "tok-1"})
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, true, body["logged_in"])
	assert.Equal(t, "/introduction", body["current_route"])
	assert.Equal(t, true, body["show_onboarding"])

	// Request a one-time code
	response, body = post(t, server, "/v1/verifications/aadhaar/otp", map[string]string{"aadhaar_number": "123412341234"})
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "challenge_issued", body["step"])
	assert.Equal(t, "R1", body["reference_id"])

	// Submit the code
	response, body = post(t, server, "/v1/verifications/aadhaar/submit", map[string]string{"otp": "000000"})
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "completed", body["step"])
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", result["name"])

	// Export the result
	response, body = post(t, server, "/v1/verifications/aadhaar/export", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, true, body["exported"])
	assert.Equal(t, "123412341234_Jane Doe.pdf", body["filename"])

	// Reset the workflow
	response, body = post(t, server, "/v1/verifications/aadhaar/reset", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "collecting", body["step"])

	// Log out again
	response, body = post(t, server, "/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, false, body["logged_in"])
	assert.Equal(t, "/", body["current_route"])
}

func TestSubmitBeforeChallengeIsRejected(t *testing.T) {
	server := newTestAPI(t)

	response, _ := post(t, server, "/v1/auth/callback", map[string]string{"credential": "tok-1"})
	require.Equal(t, http.StatusOK, response.StatusCode)

	response, _ = post(t, server, "/v1/verifications/aadhaar/submit", map[string]string{"otp": "000000"})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}
