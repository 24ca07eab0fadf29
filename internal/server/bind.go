package server

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/ticsummit/ticsite/pkg/errors"
)

// bindJSON decodes and validates the request body into v. Any decode
// failure, including values a field type refuses to parse, is invalid input.
func bindJSON(c *gin.Context, v any) error {
	return bindFailure(c.ShouldBindJSON(v))
}

// bindBody is bindJSON for a body that was already read.
func bindBody(body []byte, v any) error {
	return bindFailure(binding.JSON.BindBody(body, v))
}

func bindFailure(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return errors.Invalid.Explain("malformed JSON body").Wrap(err)
}
