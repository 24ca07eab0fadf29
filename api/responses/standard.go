package responses

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/ticsummit/ticsite/pkg/errors"
)

// Envelope is the body of every JSON API response.
type Envelope struct {
	Success    bool                   `json:"success"`
	Data       interface{}            `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Code       string                 `json:"code,omitempty"`
	Fields     []apperrors.FieldError `json:"fields,omitempty"`
	Pagination *PaginationMeta        `json:"pagination,omitempty"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// OK sends a 200 response carrying data
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created sends a 201 Created response
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// NoContent sends a 204 No Content response
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Page sends a paginated list
func Page(c *gin.Context, items interface{}, meta *PaginationMeta) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: items, Pagination: meta})
}

// Fail writes the error envelope for err and aborts the chain. Internal
// errors are attached to the gin context for the access logger and their
// text is never sent to the client.
func Fail(c *gin.Context, err error) {
	err = normalize(err)
	status := apperrors.StatusOf(err)

	body := Envelope{Success: false, Error: "internal server error", Code: apperrors.Internal.Kind}
	var appErr *apperrors.Error
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		body.Error = appErr.Message
		body.Code = appErr.Kind
		body.Fields = appErr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// normalize turns binding and decoding failures into validation errors.
func normalize(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := apperrors.Invalid.Explain("validation failed")
		for _, fe := range verrs {
			out = out.WithField(fe.Field(), fe.Tag(), fieldMessage(fe))
		}
		return out
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return apperrors.Invalid.Explain("malformed JSON body").Wrap(err)
	case errors.As(err, &typeErr):
		return apperrors.Invalid.Explain("invalid value for %s", typeErr.Field).
			WithField(typeErr.Field, "type", "expected "+typeErr.Type.String())
	}
	return err
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "slug":
		return "may only contain lowercase letters, digits and dashes"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}

// CreatePaginationMeta creates pagination metadata
func CreatePaginationMeta(page, perPage int, total int64) *PaginationMeta {
	totalPages := 1
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	if totalPages < 1 {
		totalPages = 1
	}
	return &PaginationMeta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
