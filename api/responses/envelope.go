package responses

// Success wraps every 2xx JSON body.
type Success struct {
	Data any `json:"data"`
}

// Failure wraps every error body.
type Failure struct {
	Error FailureBody `json:"error"`
}

type FailureBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
