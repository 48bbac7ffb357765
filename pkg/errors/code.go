package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Authentication errors
// 12000-12999: Problem module errors
// 13000-13999: Answer module errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10007

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Authentication Errors (11000-11999) ==========

	InvalidCredentials ErrorCode = 11000
	TokenExpired       ErrorCode = 11003
	TokenInvalid       ErrorCode = 11004

	// ========== Problem Module Errors (12000-12999) ==========

	ProblemNotFound       ErrorCode = 12000
	ProblemCreateFailed   ErrorCode = 12002
	ProblemUpdateFailed   ErrorCode = 12003
	ProblemDeleteFailed   ErrorCode = 12004
	QuestionAlreadyExists ErrorCode = 12005
	InvalidProblemType    ErrorCode = 12006
	InvalidExpression     ErrorCode = 12007

	// ========== Answer Module Errors (13000-13999) ==========

	AnswerSubmitFailed ErrorCode = 13000
	AnswerRecordFailed ErrorCode = 13001
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "User not authorized.",
	Forbidden:           "Access forbidden",
	ServiceUnavailable:  "Service temporarily unavailable",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	// Authentication
	InvalidCredentials: "Invalid credentials",
	TokenExpired:       "Token has expired",
	TokenInvalid:       "Invalid token",

	// Problem
	ProblemNotFound:       "Problem not found",
	ProblemCreateFailed:   "Failed to create problem",
	ProblemUpdateFailed:   "Failed to update problem",
	ProblemDeleteFailed:   "Failed to delete problem",
	QuestionAlreadyExists: "Question already exists",
	InvalidProblemType:    "Invalid problem type",
	InvalidExpression:     "Expression not valid!",

	// Answer
	AnswerSubmitFailed: "Failed to submit answer",
	AnswerRecordFailed: "Failed to record answer",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == InvalidCredentials, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == RecordNotFound, c == ProblemNotFound:
		return 404
	case c == RecordAlreadyExists, c == QuestionAlreadyExists:
		return 409
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == InvalidProblemType, c == InvalidExpression:
		return 400
	default:
		return 500
	}
}
