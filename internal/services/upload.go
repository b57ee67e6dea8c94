package services

import (
	"fmt"
	"io"

	"hoiku-portal/internal/storage"
)

// Upload is a file received from a client. Size is -1 when unknown.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

func (u *Upload) validate(maxBytes int64) error {
	if u == nil || u.Body == nil || u.Filename == "" {
		return ErrMissingFile
	}
	if !storage.AllowedFile(u.Filename) {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, storage.Extension(u.Filename))
	}
	if u.Size > maxBytes {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, u.Size)
	}
	return nil
}

// reader caps the body at maxBytes so a lying Size cannot overrun the limit.
func (u *Upload) reader(maxBytes int64) io.Reader {
	return &cappedReader{r: u.Body, remaining: maxBytes}
}

type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}
