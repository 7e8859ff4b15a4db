package app

import (
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
)

type uploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// formFile reads the multipart field. It reads at most limit+1 bytes so that an
// oversized file is still detectable by its length. A limit <= 0 reads everything.
// A missing field returns http.ErrMissingFile.
func formFile(c *gin.Context, field string, limit int64) (*uploadedFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return &uploadedFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
