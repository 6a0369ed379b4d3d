package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	statusSuccess = "SUCCESS"
	statusValid   = "VALID"

	// ErrNoCredentials is returned when the exchange endpoint responded without an application credential
	ErrNoCredentials = errors.New("verifier: exchange response contains no credentials")

	// ErrChallengeRejected is returned when the service did not issue a challenge for the given subject
	ErrChallengeRejected = errors.New("verifier: challenge request was not successful")
)

// Client talks to the upstream verification service.
// It covers the credential exchange as well as the two verification workflow calls; all three run against the same
// base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new verification service client
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Exchange trades a raw identity-provider credential for an application bearer credential.
// The provider credential is passed on verbatim; no validation is performed on it.
func (client *Client) Exchange(ctx context.Context, providerCredential string) (string, error) {
	var response struct {
		Credentials string `json:"credentials"`
	}
	if err := client.post(ctx, "token", providerCredential, nil, &response); err != nil {
		return "", err
	}
	if response.Credentials == "" {
		return "", ErrNoCredentials
	}
	return response.Credentials, nil
}

// GenerateOTP requests a one-time code for the given subject identifier.
// It returns the reference handle correlating this challenge with its later submission.
func (client *Client) GenerateOTP(ctx context.Context, credential, subjectID string) (string, error) {
	payload := map[string]string{
		"aadhaar_number": subjectID,
	}
	var response struct {
		Status      string `json:"status"`
		ReferenceID string `json:"refId"`
	}
	if err := client.post(ctx, "aadhaar/generateotp", credential, payload, &response); err != nil {
		return "", err
	}
	if response.Status != statusSuccess || response.ReferenceID == "" {
		return "", ErrChallengeRejected
	}
	return response.ReferenceID, nil
}

// SubmitOTP submits a one-time code together with its reference handle and returns the verification result.
// A non-"VALID" status is not an error; the caller decides how to treat it.
func (client *Client) SubmitOTP(ctx context.Context, credential, otp, referenceID string) (*Result, error) {
	payload := map[string]string{
		"otp":    otp,
		"ref_id": referenceID,
	}
	result := new(Result)
	if err := client.post(ctx, "aadhaar/submit", credential, payload, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (client *Client) post(ctx context.Context, path, credential string, payload, target interface{}) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, &body)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+credential)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("verifier: '%s' responded with status %d", path, response.StatusCode)
	}
	return json.NewDecoder(response.Body).Decode(target)
}
