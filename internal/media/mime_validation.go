package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// imageKind is an accepted upload format, detected from content rather than
// the client's file name or Content-Type.
type imageKind struct {
	mime  string
	label string
	ext   string
}

var acceptedImages = []imageKind{
	{mime: "image/png", label: "PNG", ext: ".png"},
	{mime: "image/jpeg", label: "JPEG", ext: ".jpg"},
	{mime: "image/webp", label: "WEBP", ext: ".webp"},
	{mime: "image/gif", label: "GIF", ext: ".gif"},
}

func sniffImage(data []byte) (imageKind, bool) {
	detected := mimetype.Detect(data)
	for _, kind := range acceptedImages {
		if detected.Is(kind.mime) {
			return kind, true
		}
	}
	return imageKind{}, false
}

// acceptedLabels reads "PNG, JPEG, WEBP, or GIF".
func acceptedLabels() string {
	labels := make([]string, len(acceptedImages))
	for i, kind := range acceptedImages {
		labels[i] = kind.label
	}
	if len(labels) < 3 {
		return strings.Join(labels, " or ")
	}
	last := len(labels) - 1
	return strings.Join(labels[:last], ", ") + ", or " + labels[last]
}
