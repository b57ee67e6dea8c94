package handlers

import (
	"bufio"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"hoiku-portal/internal/services"
	"hoiku-portal/internal/storage"

	"github.com/gin-gonic/gin"
)

// formUpload opens the "file" field of a parsed multipart form. A missing
// file yields a nil upload so the service reports it.
func formUpload(c *gin.Context) (*services.Upload, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, func() {}, err
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*services.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &services.Upload{Filename: fh.Filename, Size: fh.Size, Body: f}, func() { _ = f.Close() }, nil
}

// sendFile streams rc as an attachment, sniffing the content type.
func sendFile(c *gin.Context, name string, rc io.ReadCloser) {
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 3072)
	head, _ := br.Peek(3072)

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	c.DataFromReader(http.StatusOK, -1, storage.ContentType(name, head), br, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
	})
}
