// Package address normalizes recipient phone numbers into the canonical
// provider address form and infers media kinds from file names.
package address

import (
	"path/filepath"
	"strings"
)

// DefaultCountryPrefix is the country calling code assumed for numbers
// supplied without one.
const DefaultCountryPrefix = "62"

// DefaultDomain is the provider's address domain suffix.
const DefaultDomain = "s.whatsapp.net"

// Normalize converts a raw phone number into the canonical address the
// provider expects. Non-digit characters are stripped. A number outside
// the country prefix is rebased onto it: a leading "0" is replaced by the
// prefix, anything else gets the prefix prepended. The domain suffix is
// always appended.
//
//	Normalize("0811-222-333", "62", "s.whatsapp.net") // "62811222333@s.whatsapp.net"
func Normalize(raw, countryPrefix, domain string) string {
	if countryPrefix == "" {
		countryPrefix = DefaultCountryPrefix
	}
	if domain == "" {
		domain = DefaultDomain
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if !strings.HasPrefix(digits, countryPrefix) {
		if strings.HasPrefix(digits, "0") {
			digits = countryPrefix + digits[1:]
		} else {
			digits = countryPrefix + digits
		}
	}

	return digits + "@" + domain
}

// MediaKind identifies how a media payload is presented to the recipient.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

var kindByExt = map[string]MediaKind{
	".jpg":  MediaImage,
	".jpeg": MediaImage,
	".png":  MediaImage,
	".gif":  MediaImage,
	".webp": MediaImage,
	".mp4":  MediaVideo,
	".avi":  MediaVideo,
	".mov":  MediaVideo,
	".mkv":  MediaVideo,
	".mp3":  MediaAudio,
	".wav":  MediaAudio,
	".ogg":  MediaAudio,
	".m4a":  MediaAudio,
}

// KindForPath infers the media kind from a file name's extension.
// Unrecognized extensions fall back to MediaDocument.
func KindForPath(path string) MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := kindByExt[ext]; ok {
		return kind
	}
	return MediaDocument
}
