package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every module.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeExternalService    ErrorCode = "COMMON_010"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_012"
)

// Labeling module error codes.
const (
	ErrCodeEmptyResponseText    ErrorCode = "LBL_001"
	ErrCodeSentimentOutOfRange  ErrorCode = "LBL_002"
	ErrCodeEmbeddingUnavailable ErrorCode = "LBL_003"
	ErrCodeEmbeddingDimension   ErrorCode = "LBL_004"
	ErrCodeLegacyLabelUnknown   ErrorCode = "LBL_005"
)

// Deduplication / similarity index error codes.
const (
	ErrCodeIndexInsertFailed ErrorCode = "DED_001"
	ErrCodeIndexQueryFailed  ErrorCode = "DED_002"
	ErrCodeMissingEmbedding  ErrorCode = "DED_003"
	ErrCodeThresholdInvalid  ErrorCode = "DED_004"
)

// Clustering error codes.
const (
	ErrCodeClusteringFailed ErrorCode = "CLU_001"
	ErrCodeEmptyBatch       ErrorCode = "CLU_002"
)

// Contract validation error codes.
const (
	ErrCodeContractViolation     ErrorCode = "CNT_001"
	ErrCodeWordCountOutOfRange   ErrorCode = "CNT_002"
	ErrCodeCompanyFloor          ErrorCode = "CNT_003"
	ErrCodeBlocklistedPhrase     ErrorCode = "CNT_004"
	ErrCodeDanglingFinding       ErrorCode = "CNT_005"
	ErrCodeClassificationInvalid ErrorCode = "CNT_006"
)

// Quality review error codes.
const (
	ErrCodeThemeNotFound          ErrorCode = "REV_001"
	ErrCodeIllegalTransition      ErrorCode = "REV_002"
	ErrCodeConcurrentModification ErrorCode = "REV_003"
	ErrCodeRejectionNoteRequired  ErrorCode = "REV_004"
	ErrCodeReviewerRequired       ErrorCode = "REV_005"
)

// Generation / embedding service error codes.
const (
	ErrCodeGenerationFailed    ErrorCode = "GEN_001"
	ErrCodeGenerationMalformed ErrorCode = "GEN_002"
	ErrCodeTransientService    ErrorCode = "GEN_003"
	ErrCodeRetriesExhausted    ErrorCode = "GEN_004"
)

// Synthesis batch error codes.
const (
	ErrCodeBatchConfigInvalid ErrorCode = "SYN_001"
	ErrCodeBatchAborted       ErrorCode = "SYN_002"
	ErrCodeBatchNotFound      ErrorCode = "SYN_003"
)

// errorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var errorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeEmptyResponseText:    http.StatusUnprocessableEntity,
	ErrCodeSentimentOutOfRange:  http.StatusUnprocessableEntity,
	ErrCodeEmbeddingUnavailable: http.StatusServiceUnavailable,
	ErrCodeEmbeddingDimension:   http.StatusUnprocessableEntity,
	ErrCodeLegacyLabelUnknown:   http.StatusUnprocessableEntity,

	ErrCodeIndexInsertFailed: http.StatusInternalServerError,
	ErrCodeIndexQueryFailed:  http.StatusInternalServerError,
	ErrCodeMissingEmbedding:  http.StatusUnprocessableEntity,
	ErrCodeThresholdInvalid:  http.StatusBadRequest,

	ErrCodeClusteringFailed: http.StatusInternalServerError,
	ErrCodeEmptyBatch:       http.StatusUnprocessableEntity,

	ErrCodeContractViolation:     http.StatusUnprocessableEntity,
	ErrCodeWordCountOutOfRange:   http.StatusUnprocessableEntity,
	ErrCodeCompanyFloor:          http.StatusUnprocessableEntity,
	ErrCodeBlocklistedPhrase:     http.StatusUnprocessableEntity,
	ErrCodeDanglingFinding:       http.StatusUnprocessableEntity,
	ErrCodeClassificationInvalid: http.StatusUnprocessableEntity,

	ErrCodeThemeNotFound:          http.StatusNotFound,
	ErrCodeIllegalTransition:      http.StatusConflict,
	ErrCodeConcurrentModification: http.StatusConflict,
	ErrCodeRejectionNoteRequired:  http.StatusUnprocessableEntity,
	ErrCodeReviewerRequired:       http.StatusUnprocessableEntity,

	ErrCodeGenerationFailed:    http.StatusBadGateway,
	ErrCodeGenerationMalformed: http.StatusBadGateway,
	ErrCodeTransientService:    http.StatusServiceUnavailable,
	ErrCodeRetriesExhausted:    http.StatusServiceUnavailable,

	ErrCodeBatchConfigInvalid: http.StatusBadRequest,
	ErrCodeBatchAborted:       http.StatusConflict,
	ErrCodeBatchNotFound:      http.StatusNotFound,
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
// Unknown codes map to 500 so a missing table entry can never mask a failure.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether the ErrorCode maps to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the ErrorCode maps to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode ("LBL", "REV", …).
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
