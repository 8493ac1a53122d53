package imagecheck

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	MaxURLImages   = 100
	MaxBase64Bytes = 10 << 20
)

// Request field names.
const (
	FieldSecretID   = "secretId"
	FieldBusinessID = "businessId"
	FieldVersion    = "version"
	FieldTimestamp  = "timestamp"
	FieldNonce      = "nonce"
	FieldImages     = "images"
	FieldAccount    = "account"
	FieldIP         = "ip"
)

type Credentials struct {
	SecretID   string
	SecretKey  string // used only to sign, never sent
	BusinessID string
}

func (c Credentials) Validate() error {
	switch {
	case strings.TrimSpace(c.SecretID) == "":
		return &ConfigError{Field: "secretId"}
	case strings.TrimSpace(c.SecretKey) == "":
		return &ConfigError{Field: "secretKey"}
	case strings.TrimSpace(c.BusinessID) == "":
		return &ConfigError{Field: "businessId"}
	}
	return nil
}

// Params is the flat form sent on the wire. Changing it after signing breaks the signature.
type Params map[string]string

func (p Params) clone() Params {
	out := make(Params, len(p)+8)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Request holds the caller-side fields of one check call.
type Request struct {
	Images  []ImageDescriptor
	Account string
	IP      string
	Extra   map[string]string
}

func (r Request) Params() (Params, error) {
	if err := ValidateImages(r.Images); err != nil {
		return nil, err
	}
	images, err := EncodeImages(r.Images)
	if err != nil {
		return nil, err
	}
	p := make(Params, len(r.Extra)+3)
	for k, v := range r.Extra {
		p[k] = v
	}
	p[FieldImages] = images
	if r.Account != "" {
		p[FieldAccount] = r.Account
	}
	if r.IP != "" {
		p[FieldIP] = r.IP
	}
	return p, nil
}

// ValidateImages enforces the per-call limits: at most MaxURLImages URL images
// and at most MaxBase64Bytes of base64 data.
func ValidateImages(images []ImageDescriptor) error {
	if len(images) == 0 {
		return &LimitError{Reason: "no images"}
	}
	urls, b64 := 0, 0
	for i, img := range images {
		if img.Data == "" {
			return &LimitError{Reason: fmt.Sprintf("image #%d (%s) has no data", i, img.Name)}
		}
		switch img.Type {
		case ImageURL:
			urls++
		case ImageBase64:
			b64 += len(img.Data)
		default:
			return &LimitError{Reason: fmt.Sprintf("image #%d (%s) has unknown type %d", i, img.Name, img.Type)}
		}
	}
	if urls > MaxURLImages {
		return &LimitError{Reason: fmt.Sprintf("%d url images, max %d", urls, MaxURLImages)}
	}
	if b64 > MaxBase64Bytes {
		return &LimitError{Reason: fmt.Sprintf("base64 payload %d bytes, max %d", b64, MaxBase64Bytes)}
	}
	return nil
}

// EncodeImages renders the images field. URLs keep their & and < > characters.
func EncodeImages(images []ImageDescriptor) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(images); err != nil {
		return "", fmt.Errorf("encode images: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
