package dispatch

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"sales-collector/internal/domain"
	"sales-collector/internal/ports"
)

// UserServer is the address suffix of personal chat accounts.
const UserServer = "s.whatsapp.net"

// NormalizeDestination turns a phone number into a chat address. Non-digits
// are dropped and the country code is prefixed unless already present; a
// leading trunk zero is replaced by the country code.
func NormalizeDestination(input, countryCode string) (string, error) {
	user := PhoneDigits(input)
	if user == "" {
		return "", domain.NewValidationError("to", "destination must contain a phone number")
	}

	if !strings.HasPrefix(user, countryCode) {
		user = countryCode + strings.TrimPrefix(user, "0")
	}

	return user + "@" + UserServer, nil
}

// PhoneDigits keeps only the ASCII digits of s.
func PhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DecodeImages turns base64 payloads, optionally data URLs, into images.
// Anything that is not an image is rejected before any network call.
func DecodeImages(payloads []string) ([]ports.Image, error) {
	images := make([]ports.Image, 0, len(payloads))
	for i, payload := range payloads {
		data, err := decodeBase64(stripDataURL(payload))
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("images[%d]", i), "invalid base64 payload")
		}
		if len(data) == 0 {
			return nil, domain.NewValidationError(fmt.Sprintf("images[%d]", i), "empty image")
		}

		mt := mimetype.Detect(data)
		if !strings.HasPrefix(mt.String(), "image/") {
			return nil, domain.NewValidationError(fmt.Sprintf("images[%d]", i), "unsupported content type "+mt.String())
		}

		images = append(images, ports.Image{Data: data, MimeType: mt.String()})
	}
	return images, nil
}

func stripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ";base64,"); i >= 0 {
		return s[i+len(";base64,"):]
	}
	return s
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
