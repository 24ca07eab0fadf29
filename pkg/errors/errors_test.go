package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExplainKeepsIdentity(t *testing.T) {
	err := NotFound.Explain("post %q not found", "hello")

	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, Conflict))
	assert.Equal(t, `post "hello" not found`, err.Message)
	assert.Equal(t, "not found", NotFound.Message, "sentinel must not be mutated")
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Invalid, http.StatusBadRequest},
		{Unauthorized.Explain("login required"), http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", Conflict.Explain("slug taken")), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
		{TooManyRequests, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.err), "%v", tc.err)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("duplicate key")
	err := Conflict.Explain("email taken").Wrap(cause)

	assert.True(t, Is(err, cause))
	assert.Equal(t, http.StatusConflict, err.Status())
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestWithFieldDoesNotAlias(t *testing.T) {
	base := Invalid.WithField("title", "required", "")
	a := base.WithField("slug", "slug", "")
	b := base.WithField("email", "email", "")

	assert.Len(t, base.Fields, 1)
	assert.Equal(t, "slug", a.Fields[1].Field)
	assert.Equal(t, "email", b.Fields[1].Field)
}
