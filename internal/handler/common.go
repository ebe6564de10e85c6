package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"voucherpro/internal/logger"
	"voucherpro/internal/service"
	"voucherpro/pkg/apperror"
	"voucherpro/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// MaxAttachmentSize caps uploaded voucher and invoice files.
const MaxAttachmentSize = 10 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// respondError writes err in the standard envelope. Internal failures are logged and their detail hidden.
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(err)
	if kind == apperror.KindInternal {
		logger.FromGin(c).Error("request failed", zap.Error(err))
	}
	c.JSON(status, response.ErrorKind(status, kind.String(), apperror.PublicMessage(err)))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.ErrorKind(http.StatusBadRequest, apperror.KindValidation.String(), msg))
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// bindWithAttachment binds a JSON body, or for multipart requests the JSON in the "payload"
// field plus an optional "file" part.
func bindWithAttachment(c *gin.Context, obj interface{}) (*service.Attachment, bool) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, bindJSON(c, obj)
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxAttachmentSize+(1<<20))
	payload := c.PostForm("payload")
	if strings.TrimSpace(payload) == "" {
		badRequest(c, "payload field is required")
		return nil, false
	}
	if err := binding.JSON.BindBody([]byte(payload), obj); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return nil, false
	}

	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		badRequest(c, "Invalid file upload: "+err.Error())
		return nil, false
	}
	if header.Size > MaxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, response.ErrorKind(http.StatusRequestEntityTooLarge, apperror.KindValidation.String(), "file exceeds maximum size of 10MB"))
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, apperror.Wrap(err, "failed to open upload"))
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, apperror.Wrap(err, "failed to read upload"))
		return nil, false
	}
	return &service.Attachment{FileName: filepath.Base(header.Filename), Data: data}, true
}

// sendFile streams data as a download.
func sendFile(c *gin.Context, contentType, fileName string, data []byte) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, contentType, data)
}
