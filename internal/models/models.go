package models

// Credentials is the auth form as the visitor edits it.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the message field the auth backend returns on
// success and on failure.
type AuthResponse struct {
	Message string `json:"message"`
}

// UploadRequest is the file currently selected for analysis.
type UploadRequest struct {
	Filename string
	Data     []byte
}

// PredictionResult is what the fingerprint page shows after a successful call.
type PredictionResult struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// PredictResponse is the body returned by upload-single and scan-fingerprint.
// The backend sends either error or result/confidence/input_image.
type PredictResponse struct {
	Result     string   `json:"result,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	InputImage string   `json:"input_image,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Outcome is either Ok or Err.
type Outcome interface {
	isOutcome()
}

// Ok is a successful prediction. Preview is the base64 encoded input image
// echoed by the upload endpoint, empty when absent.
type Ok struct {
	Label      string
	Confidence *float64
	Preview    string
}

// Err is a business error reported by the backend.
type Err struct {
	Message string
}

func (Ok) isOutcome()  {}
func (Err) isOutcome() {}

// Outcome converts the wire shape into the tagged variant. A non-empty error
// field always wins.
func (r PredictResponse) Outcome() Outcome {
	if r.Error != "" {
		return Err{Message: r.Error}
	}
	return Ok{Label: r.Result, Confidence: r.Confidence, Preview: r.InputImage}
}
