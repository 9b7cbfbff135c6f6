package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"receiptcsv/internal/domain"
	"receiptcsv/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return http.StatusServiceUnavailable, "CONFIGURATION_ERROR", cfgErr.Error()
	}

	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		switch extErr.Kind {
		case domain.ExtractionRateLimited:
			return http.StatusTooManyRequests, "RATE_LIMITED", "the document analysis service is rate limiting requests; try again later"
		case domain.ExtractionAuth:
			return http.StatusBadGateway, "EXTRACTION_FAILED", "the document analysis service rejected the configured credentials"
		case domain.ExtractionNetwork:
			return http.StatusBadGateway, "EXTRACTION_FAILED", "the document analysis service could not be reached"
		case domain.ExtractionResponse:
			return http.StatusBadGateway, "EXTRACTION_FAILED", "the document analysis service returned an unreadable response"
		default:
			if extErr.StatusCode != 0 {
				return http.StatusBadGateway, "EXTRACTION_FAILED", "the document analysis service failed with status " + strconv.Itoa(extErr.StatusCode)
			}
			return http.StatusBadGateway, "EXTRACTION_FAILED", "the document analysis service could not analyze the receipt"
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidTemplate):
		return http.StatusBadRequest, "INVALID_TEMPLATE", err.Error()
	case errors.Is(err, domain.ErrMissingFile):
		return http.StatusBadRequest, "MISSING_FILE", "file field is required"
	case errors.Is(err, domain.ErrUnsupportedFile):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: jpg, png, bmp, tiff, heif, pdf for receipts and csv, xlsx for templates"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound, "RESULT_NOT_FOUND", "result not found"
	case errors.Is(err, domain.ErrSessionTooLarge):
		return http.StatusRequestEntityTooLarge, "SESSION_FULL", "this session holds too many results; export and reset to continue"
	case errors.Is(err, domain.ErrInvalidSessionToken), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized, "INVALID_SESSION", "session is missing or expired"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	logError(c, status, err)
	setRetryAfter(c, err)
	RespondError(c, status, code, msg)
}

func logError(c *gin.Context, status int, err error) {
	if status >= 500 {
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Int("status", status).Msg("request failed")
	}
}

func setRetryAfter(c *gin.Context, err error) {
	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) && extErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(extErr.RetryAfter.Seconds())))
	}
}

// sessionID extracts the session ID set by the session middleware.
// Returns false if it is missing (error response already written).
func sessionID(c *gin.Context) (string, bool) {
	id, err := middleware.GetSessionID(c)
	if err != nil {
		HandleError(c, err)
		return "", false
	}
	return id, true
}

// formFile reads a multipart file field with the request body bounded by limit.
func formFile(c *gin.Context, field string, limit int64) (multipart.File, *multipart.FileHeader, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, domain.ErrFileTooLarge
		}
		return nil, nil, domain.ErrMissingFile
	}
	return file, header, nil
}
