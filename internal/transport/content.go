package transport

import "github.com/gabriel-vasile/mimetype"

// DefaultContentType is used when the type of a file cannot be detected.
const DefaultContentType = "application/octet-stream"

// ContentType sniffs the MIME type of a local file.
func ContentType(localPath string) string {
	mime, err := mimetype.DetectFile(localPath)
	if err != nil {
		return DefaultContentType
	}

	return mime.String()
}
