// Package sign computes request signatures for the image check API.
//
// The signed buffer is every key followed by its value, keys in byte order,
// with the secret key appended at the end. The "signature" field itself is
// never part of the buffer.
package sign

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/tjfoc/gmsm/sm3"
)

type Method string

const (
	MD5 Method = "MD5"
	SM3 Method = "SM3"
)

const (
	FieldSignature       = "signature"
	FieldSignatureMethod = "signatureMethod"
)

// ParseMethod accepts "", "md5" and "sm3" in any case. Empty means MD5.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(MD5):
		return MD5, nil
	case string(SM3):
		return SM3, nil
	default:
		return "", fmt.Errorf("unknown signature method %q; use MD5 or SM3", s)
	}
}

// MethodFromParams mirrors the server rule: SM3 only when signatureMethod is exactly "SM3".
func MethodFromParams(params map[string]string) Method {
	if params[FieldSignatureMethod] == string(SM3) {
		return SM3
	}
	return MD5
}

// Buffer returns the canonical string that gets digested.
func Buffer(params map[string]string, secretKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == FieldSignature {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	b.WriteString(secretKey)
	return b.String()
}

func Sign(params map[string]string, secretKey string, method Method) string {
	var h hash.Hash
	if method == SM3 {
		h = sm3.New()
	} else {
		h = md5.New()
	}
	h.Write([]byte(Buffer(params, secretKey)))
	return hex.EncodeToString(h.Sum(nil))
}
