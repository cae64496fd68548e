package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/modality/internal/media"
)

const maxUploadBytes = 100 << 20

// readUpload fetches one multipart file field and enforces the MIME
// whitelist for its media kind. The boolean reports whether the field
// was present at all, so optional fields can be skipped cleanly.
func readUpload(c *gin.Context, field string, kind media.Kind) ([]byte, string, bool, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", false, nil
	}
	if fh.Size > maxUploadBytes {
		return nil, "", true, fmt.Errorf("%s upload exceeds %d bytes", field, maxUploadBytes)
	}
	contentType := fh.Header.Get("Content-Type")
	if !media.MIMEAllowed(kind, contentType) {
		return nil, "", true, fmt.Errorf("unsupported %s content type %q", kind, contentType)
	}

	data, err := readFileHeader(fh)
	if err != nil {
		return nil, "", true, err
	}
	return data, fh.Filename, true, nil
}

// requireUpload is readUpload for mandatory fields.
func requireUpload(c *gin.Context, field string, kind media.Kind) ([]byte, string, error) {
	data, filename, present, err := readUpload(c, field, kind)
	if err != nil {
		return nil, "", err
	}
	if !present {
		return nil, "", fmt.Errorf("missing %s file field", field)
	}
	return data, filename, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func processingFailed(c *gin.Context, operation string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: operation + " failed. Please try again.",
	})
}
