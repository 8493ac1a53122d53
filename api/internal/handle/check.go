package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"image-check/api/internal/imagecheck"
	"image-check/api/internal/util"
)

// maxBodyBytes leaves room for JSON framing around a full base64 batch.
const maxBodyBytes = imagecheck.MaxBase64Bytes + 1<<20

type CheckRequest struct {
	Images  []imagecheck.ImageDescriptor `json:"images"`
	Account string                       `json:"account,omitempty"`
	IP      string                       `json:"ip,omitempty"`
	Extra   map[string]string            `json:"extra,omitempty"`
}

type CheckReply struct {
	RequestID string                    `json:"requestId"`
	Summary   imagecheck.Summary        `json:"summary"`
	Response  *imagecheck.CheckResponse `json:"response"`
}

func (h *Handle) Check(w http.ResponseWriter, r *http.Request) {
	rid := uuid.NewString()
	w.Header().Set("X-Request-Id", rid)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
		return
	}
	var req CheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": fmt.Sprintf("body exceeds %d bytes", mbe.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json: " + err.Error()})
		return
	}
	if err := normalizeImages(req.Images); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	params, err := imagecheck.Request{
		Images:  req.Images,
		Account: req.Account,
		IP:      req.IP,
		Extra:   req.Extra,
	}.Params()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	deadline := requestTimeout(r)
	ctx, cancel := context.WithTimeout(r.Context(), deadline)
	defer cancel()

	start := time.Now()
	resp, err := h.checker.Check(ctx, params)
	if err != nil {
		code, kind := errorStatus(err)
		log.Printf("req=%s check failed (%s) after %v: %v", rid, kind, time.Since(start), err)
		writeJSON(w, code, map[string]string{"error": kind + ": " + err.Error(), "requestId": rid})
		return
	}

	sum := imagecheck.Summarize(resp)
	log.Printf("req=%s code=%d images=%d suspicious=%d confirmed=%d failed=%d in %v",
		rid, sum.Code, len(req.Images), sum.Counts.Suspicious, sum.Counts.Confirmed, sum.Counts.Failed, time.Since(start))
	if !sum.OK {
		log.Printf("req=%s api error: code=%d msg=%s", rid, sum.Code, sum.Msg)
	}

	if h.reporter != nil {
		if err := h.reporter.Report(ctx, sum); err != nil {
			log.Printf("req=%s report: %v", rid, err)
		}
	}

	writeJSON(w, http.StatusOK, CheckReply{RequestID: rid, Summary: sum, Response: resp})
}

// normalizeImages strips data URL prefixes from base64 items and rejects
// payloads that do not decode to an image.
func normalizeImages(images []imagecheck.ImageDescriptor) error {
	for i := range images {
		img := &images[i]
		if img.Type != imagecheck.ImageBase64 {
			continue
		}
		b, _, err := util.DecodeBase64MaybeDataURL(img.Data)
		if err != nil {
			return fmt.Errorf("image %q: bad base64: %w", img.Name, err)
		}
		if util.SniffImage(b) == "" {
			return fmt.Errorf("image %q: payload is not an image", img.Name)
		}
		img.Data, _ = util.StripDataURL(img.Data)
	}
	return nil
}

// requestTimeout reads X-Request-Timeout or ?timeoutSec= in seconds. The
// client never waits longer than DefaultTimeout, so larger values are clamped.
func requestTimeout(r *http.Request) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	v, err := strconv.Atoi(ts)
	if err != nil || v <= 0 {
		return imagecheck.DefaultTimeout
	}
	return min(time.Duration(v)*time.Second, imagecheck.DefaultTimeout)
}

func errorStatus(err error) (int, string) {
	var (
		te *imagecheck.TransportError
		pe *imagecheck.ProtocolError
		le *imagecheck.LimitError
	)
	switch {
	case errors.As(err, &le):
		return http.StatusBadRequest, "limit"
	case errors.As(err, &te):
		if te.Timeout() {
			return http.StatusGatewayTimeout, "timeout"
		}
		return http.StatusBadGateway, "transport"
	case errors.As(err, &pe):
		return http.StatusBadGateway, "protocol"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
