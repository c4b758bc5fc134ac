package models

import (
	"path/filepath"
	"strings"
)

var contentTypesByExt = map[string]string{
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".gifv": "video/mp4",
}

// ContentTypeForPath classifies a file by extension. ok is false for
// extensions hoard does not ingest.
func ContentTypeForPath(name string) (contentType string, ok bool) {
	ext := strings.ToLower(filepath.Ext(name))
	contentType, ok = contentTypesByExt[ext]
	return contentType, ok
}
