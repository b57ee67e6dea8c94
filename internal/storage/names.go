package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gosimple/slug"
)

var allowedExtensions = map[string]struct{}{
	"pdf":  {},
	"xlsx": {},
	"xls":  {},
	"csv":  {},
	"doc":  {},
	"docx": {},
	"ppt":  {},
	"pptx": {},
}

// AllowedExtensions lists the accepted upload extensions, sorted.
func AllowedExtensions() []string {
	return []string{"csv", "doc", "docx", "pdf", "ppt", "pptx", "xls", "xlsx"}
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

func AllowedFile(filename string) bool {
	_, ok := allowedExtensions[Extension(filename)]
	return ok
}

// SanitizeFilename strips directories and reduces the stem to a slug so the
// result is safe to use as part of a storage key.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	ext := Extension(name)
	stem := name
	if ext != "" {
		stem = name[:len(name)-len(ext)-1]
	}

	stem = slug.Make(stem)
	if stem == "" {
		stem = "file"
	}
	if ext == "" {
		return stem
	}
	return stem + "." + slug.Make(ext)
}

// TemplateKey names a template file after its upload time and original name.
func TemplateKey(now time.Time, original string) string {
	return fmt.Sprintf("%d_%s", now.UnixNano(), SanitizeFilename(original))
}

// SubmissionKey additionally namespaces the file by client.
func SubmissionKey(clientID uint, now time.Time, original string) string {
	return fmt.Sprintf("%d_%d_%s", clientID, now.UnixNano(), SanitizeFilename(original))
}

// ValidKey rejects keys that could escape the storage root.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, "/\\\x00") && !strings.HasPrefix(key, ".")
}

// ContentType sniffs head, falling back to the extension of name.
func ContentType(name string, head []byte) string {
	if len(head) > 0 {
		if mt := mimetype.Detect(head); !mt.Is("application/octet-stream") {
			return mt.String()
		}
	}
	if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
