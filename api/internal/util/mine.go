package util

import (
	"encoding/base64"
	"strings"

	"github.com/h2non/filetype"
)

// SniffImage returns the MIME type of an image payload, or "" for anything
// that is not an image.
func SniffImage(b []byte) string {
	if !filetype.IsImage(b) {
		return ""
	}
	kind, err := filetype.Match(b)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// StripDataURL drops a "data:<mime>;base64," prefix and returns the MIME from it.
func StripDataURL(s string) (payload, mime string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "data:") {
		return s, ""
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return s, ""
	}
	meta := s[len("data:"):idx] // "<mime>;base64"
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		mime = meta[:semi]
	} else {
		mime = meta
	}
	return s[idx+1:], mime
}

// DecodeBase64MaybeDataURL decodes standard or URL-safe base64, with or without a data: prefix.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	payload, hintMIME := StripDataURL(s)
	if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(payload); err2 == nil {
		return b2, hintMIME, nil
	} else {
		return nil, "", err
	}
}
