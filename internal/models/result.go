package models

// ResultKind discriminates every API response.
type ResultKind string

const (
	ResultSuccess        ResultKind = "success"
	ResultPartialSuccess ResultKind = "partial_success"
	ResultClientError    ResultKind = "client_error"
	ResultServerError    ResultKind = "server_error"
)

// Result is the response envelope. Callers branch on Kind, not on the HTTP status.
type Result struct {
	Kind      ResultKind `json:"result"`
	Message   string     `json:"message,omitempty"`
	Code      string     `json:"code,omitempty"`
	Retryable bool       `json:"retryable,omitempty"`
	Details   string     `json:"details,omitempty"`
	Data      any        `json:"data,omitempty"`
}

// Success wraps a fully applied operation.
func Success(message string, data any) Result {
	return Result{Kind: ResultSuccess, Message: message, Data: data}
}

// PartialSuccess wraps an operation whose primary effect was applied but a secondary one was not.
func PartialSuccess(message string, data any) Result {
	return Result{Kind: ResultPartialSuccess, Message: message, Data: data}
}

// ErrorResult converts an AppError into a client or server error result.
// Wrapped causes are only exposed for validation errors; store errors keep
// driver text (constraint and table names) out of the response.
func ErrorResult(err *AppError) Result {
	r := Result{
		Kind:      ResultServerError,
		Message:   err.Message,
		Code:      err.Code,
		Retryable: err.Retryable(),
	}
	if err.IsClientError() {
		r.Kind = ResultClientError
	}
	if err.Code == CodeValidation && err.Err != nil {
		r.Details = err.Err.Error()
	}
	return r
}
