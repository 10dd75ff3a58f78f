package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sh3r4rd/mycloud/internal/apperr"
	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/session"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before parts spill to temporary files.
const multipartMemory = 8 << 20

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{Status: model.ResultHealthy})
}

func (h *handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"Title": "MyCloud"})
}

func (h *handler) upload(c *gin.Context) {
	const op = "http.Upload"
	userID, ok := session.UserID(c)
	if !ok {
		h.writeError(c, op, apperr.New(apperr.KindUnauthorized, op, ""))
		return
	}

	if h.maxUploadBytes > 0 {
		// Leave headroom for the multipart framing around the file part.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartMemory)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, op, apperr.New(apperr.KindInvalid, op,
				fmt.Sprintf("File exceeds the %d byte upload limit", h.maxUploadBytes)))
			return
		}
		h.writeError(c, op, apperr.Wrap(apperr.KindInvalid, op, "Malformed upload", err))
		return
	}
	defer func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}()

	fh, err := c.FormFile(model.FormFieldFile)
	if err != nil {
		msg := "No file uploaded"
		// A part sent with an empty filename is parsed as a plain value.
		if form := c.Request.MultipartForm; form != nil && len(form.Value[model.FormFieldFile]) > 0 {
			msg = "No file selected"
		}
		h.writeError(c, op, apperr.Wrap(apperr.KindInvalid, op, msg, err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.writeError(c, op, apperr.Wrap(apperr.KindInvalid, op, "Unreadable upload", err))
		return
	}
	defer f.Close()

	rec, err := h.svc.Upload(c.Request.Context(), model.UploadRequest{
		UserID:         userID,
		Filename:       fh.Filename,
		ContentType:    fh.Header.Get("Content-Type"),
		Size:           fh.Size,
		IdempotencyKey: c.GetHeader(model.IdempotencyHeader),
		Body:           f,
	})
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, model.UploadResponse{
		Status:  model.ResultSuccess,
		Message: fmt.Sprintf("File %s uploaded successfully", rec.Filename),
		FileID:  rec.FileID,
	})
}

func (h *handler) listFiles(c *gin.Context) {
	const op = "http.ListFiles"
	userID, ok := session.UserID(c)
	if !ok {
		h.writeError(c, op, apperr.New(apperr.KindUnauthorized, op, ""))
		return
	}
	records, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, model.ListFilesResponse{Status: model.ResultSuccess, Files: records})
}

func (h *handler) download(c *gin.Context) {
	const op = "http.Download"
	userID, ok := session.UserID(c)
	if !ok {
		h.writeError(c, op, apperr.New(apperr.KindUnauthorized, op, ""))
		return
	}
	link, err := h.svc.DownloadLink(c.Request.Context(), userID, c.Param("file_id"))
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, model.DownloadResponse{
		Status:      model.ResultSuccess,
		DownloadURL: link.URL,
		Filename:    link.Filename,
	})
}

func (h *handler) logs(c *gin.Context) {
	const op = "http.Logs"
	userID, ok := session.UserID(c)
	if !ok {
		h.writeError(c, op, apperr.New(apperr.KindUnauthorized, op, ""))
		return
	}
	entries, err := h.svc.Logs(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, model.LogsResponse{Status: model.ResultSuccess, Logs: entries})
}
