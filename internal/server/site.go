package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ticsummit/ticsite/api/responses"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the configured file size.
const multipartOverhead = 64 << 10

type settingRequest struct {
	Value       json.RawMessage `json:"value" binding:"required"`
	Description string          `json:"description" binding:"max=255"`
}

func (s *Server) handleListSettings(c *gin.Context) {
	all, err := s.catalog.Settings.All(c.Request.Context())
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, all)
}

func (s *Server) handleGetSetting(c *gin.Context) {
	setting, err := s.catalog.Settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, setting)
}

func (s *Server) handlePutSetting(c *gin.Context) {
	var req settingRequest
	if err := bindJSON(c, &req); err != nil {
		responses.Fail(c, err)
		return
	}
	setting, err := s.catalog.Settings.Put(c.Request.Context(), c.Param("key"), req.Value, req.Description)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, setting)
}

func (s *Server) handleDeleteSetting(c *gin.Context) {
	if err := s.catalog.Settings.Delete(c.Request.Context(), c.Param("key")); err != nil {
		responses.Fail(c, err)
		return
	}
	responses.NoContent(c)
}

func (s *Server) handleSubmitContact(c *gin.Context) {
	var msg models.ContactMessage
	if err := bindJSON(c, &msg); err != nil {
		responses.Fail(c, err)
		return
	}
	if err := s.catalog.Contact.Submit(c.Request.Context(), &msg, c.ClientIP()); err != nil {
		responses.Fail(c, err)
		return
	}
	responses.Created(c, gin.H{"id": msg.ID})
}

func (s *Server) handleSearch(c *gin.Context) {
	results, err := s.search.Search(c.Request.Context(), c.Query("q"), queryInt(c, "limit", 0))
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.OK(c, results)
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Upload.MaxBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			responses.Fail(c, errors.TooLarge.Explain("file exceeds %d bytes", s.cfg.Upload.MaxBytes))
			return
		}
		responses.Fail(c, errors.Invalid.Explain("multipart field \"file\" is required").
			WithField("file", "required", "is required").Wrap(err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		responses.Fail(c, errors.Invalid.Explain("failed to open upload").Wrap(err))
		return
	}
	defer f.Close()

	obj, err := s.validator.Validate(f)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	stored, err := s.uploader.Upload(c.Request.Context(), obj)
	if err != nil {
		responses.Fail(c, err)
		return
	}
	responses.Created(c, stored)
}

func (s *Server) handleDeleteUpload(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := s.uploader.Delete(c.Request.Context(), key); err != nil {
		responses.Fail(c, err)
		return
	}
	responses.NoContent(c)
}
