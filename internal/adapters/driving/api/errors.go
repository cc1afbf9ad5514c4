package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// ErrMissingService is returned when a required service is not provided.
var ErrMissingService = errors.New("api: rag and document services are required")

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var kindStatus = map[string]int{
	domain.KindInvalidInput:         http.StatusBadRequest,
	domain.KindNotFound:             http.StatusNotFound,
	domain.KindUnsupportedFormat:    http.StatusUnsupportedMediaType,
	domain.KindCorruptFile:          http.StatusUnprocessableEntity,
	domain.KindRateLimited:          http.StatusTooManyRequests,
	domain.KindQuotaExceeded:        http.StatusTooManyRequests,
	domain.KindAuthentication:       http.StatusBadGateway,
	domain.KindInvalidRequest:       http.StatusBadGateway,
	domain.KindProviderUnavailable:  http.StatusServiceUnavailable,
	domain.KindVectorStore:          http.StatusServiceUnavailable,
	domain.KindTimeout:              http.StatusGatewayTimeout,
	domain.KindDimensionMismatch:    http.StatusInternalServerError,
	domain.KindModelMismatch:        http.StatusConflict,
	domain.KindInvalidConfiguration: http.StatusInternalServerError,
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	if status, ok := kindStatus[domain.ErrorKind(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError aborts the request with a JSON error body.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	if wait := domain.RetryAfter(err); wait > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Error: err.Error(),
		Kind:  domain.ErrorKind(err),
	})
}

// bindError converts a gin binding failure into an invalid input error.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "filetype":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a supported file type", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registerValidations configures gin's validator once per process.
func registerValidations() error {
	registerOnce.Do(func() {
		registerErr = configureValidator(binding.Validator.Engine())
	})
	return registerErr
}

// configureValidator teaches the validator the json field names and the
// filetype rule.
func configureValidator(engine any) error {
	v, ok := engine.(*validator.Validate)
	if !ok {
		return fmt.Errorf("%w: unsupported binding validator %T", domain.ErrInvalidConfiguration, engine)
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	err := v.RegisterValidation("filetype", func(fl validator.FieldLevel) bool {
		return domain.FileType(fl.Field().String()).IsValid()
	})
	if err != nil {
		return fmt.Errorf("registering filetype validation: %w", err)
	}
	return nil
}
