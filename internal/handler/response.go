package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/middleware"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
)

// FieldError describes one failed validation rule
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// useJSONFieldNames makes validation errors report the JSON (or form) name of a field
func useJSONFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		useJSONFieldNames(v)
	}
}

// newPayloadValidator validates WebSocket payloads with the same binding tags gin uses for REST
func newPayloadValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	useJSONFieldNames(v)
	return v
}

func validationDetails(errs validator.ValidationErrors) []FieldError {
	details := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Tag:     fe.ActualTag(),
			Message: fieldErrorMessage(fe),
		})
	}
	return details
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	case "min", "gte":
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	case "uuid":
		return "Must be a valid UUID."
	case "url":
		return "Must be a valid URL."
	default:
		return "Invalid value."
	}
}

// statusOf maps an error code to its HTTP status
func statusOf(err error) int {
	switch apperror.CodeOf(err) {
	case apperror.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperror.CodeForbidden, apperror.CodeNotParticipant:
		return http.StatusForbidden
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeInvalidMessage:
		if apperror.HasCode(err, apperror.CodeNotParticipant) {
			return http.StatusForbidden
		}
		return http.StatusBadRequest
	case apperror.CodeInvalidParticipants, apperror.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a service or store error as JSON
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}

	resp := model.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    string(apperror.CodeOf(err)),
		Message: apperror.Message(err),
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil && status != http.StatusInternalServerError {
		resp.Details = apperror.Message(appErr.Cause)
	}
	c.JSON(status, resp)
}

// respondBindError writes a request binding failure as a VALIDATION_ERROR
func respondBindError(c *gin.Context, err error) {
	resp := model.ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Code:    string(apperror.CodeValidation),
		Message: "Invalid request",
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Details = validationDetails(verrs)
	} else {
		resp.Message = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

func currentUserID(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.ContextUserID).(uuid.UUID)
}

// pathUUID parses a UUID path parameter, answering 400 when it is malformed
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBindError(c, fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}
