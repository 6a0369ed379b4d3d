package verifier

// Result represents the structured identity payload the verification service returns for a valid challenge response
type Result struct {
	Status      string `json:"status"`
	ReferenceID string `json:"refId"`
	Name        string `json:"name"`
	CareOf      string `json:"careOf"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"dob"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	// Photo holds the base64 representation of the registered photograph
	Photo   string `json:"photoLink"`
	Message string `json:"message"`
}

// Valid returns whether the service recognized the challenge response
func (result *Result) Valid() bool {
	return result.Status == statusValid
}
