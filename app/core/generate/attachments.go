package generate

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pagesmith/app/pkg/logger"
	"pagesmith/app/pkg/types"
)

var textExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".csv":  true,
	".json": true,
}

const previewLimit = 500

// DecodeAttachments materializes data-URI attachments into dir. A single
// bad attachment logs and is skipped; the rest are still decoded.
func DecodeAttachments(attachments []types.Attachment, dir string) []types.DecodedAttachment {
	if len(attachments) == 0 {
		return nil
	}
	logger.Info("Decoding %d attachments", len(attachments))

	saved := make([]types.DecodedAttachment, 0, len(attachments))
	for _, att := range attachments {
		name := att.Name
		if name == "" {
			name = "attachment"
		}
		decoded, err := decodeOne(name, att.URL, dir)
		if err != nil {
			logger.Error("Failed to decode attachment %s: %v", name, err)
			continue
		}
		logger.Info("Decoded attachment: %s (%s, %d bytes)", decoded.Name, decoded.MIME, decoded.Size)
		saved = append(saved, decoded)
	}
	return saved
}

func decodeOne(name string, url string, dir string) (types.DecodedAttachment, error) {
	if !strings.HasPrefix(url, "data:") {
		return types.DecodedAttachment{}, fmt.Errorf("not a data URI")
	}

	// data:<mime>;base64,<data>
	header, body, found := strings.Cut(url, ",")
	if !found {
		return types.DecodedAttachment{}, fmt.Errorf("malformed data URI")
	}
	mime := strings.TrimPrefix(strings.SplitN(header, ";", 2)[0], "data:")

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return types.DecodedAttachment{}, fmt.Errorf("base64 decode: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.DecodedAttachment{}, fmt.Errorf("write attachment: %w", err)
	}

	return types.DecodedAttachment{
		Name:    name,
		Path:    path,
		MIME:    mime,
		Size:    len(data),
		Preview: preview(path, mime, len(data)),
	}, nil
}

// preview returns a short snippet for text-like attachments and a size
// placeholder for everything else.
func preview(path string, mime string, size int) string {
	ext := strings.ToLower(filepath.Ext(path))
	if !strings.HasPrefix(mime, "text") && !textExtensions[ext] {
		return fmt.Sprintf("[Binary file, %d bytes]", size)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "[Could not read preview]"
	}
	text := string(data)
	if ext == ".csv" {
		lines := strings.Split(text, "\n")
		if len(lines) > 3 {
			lines = lines[:3]
		}
		return strings.Join(lines, "\\n")
	}
	if len(text) > previewLimit {
		return text[:previewLimit]
	}
	return text
}

// IsTextFile decides whether an attachment commits as text or binary.
func IsTextFile(att types.DecodedAttachment) bool {
	if strings.HasPrefix(att.MIME, "text") {
		return true
	}
	return textExtensions[strings.ToLower(filepath.Ext(att.Name))]
}
