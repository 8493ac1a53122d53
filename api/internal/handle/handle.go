package handle

import (
	"context"
	"encoding/json"
	"net/http"

	"image-check/api/internal/imagecheck"
)

// Checker is satisfied by *imagecheck.Client.
type Checker interface {
	Check(ctx context.Context, params imagecheck.Params) (*imagecheck.CheckResponse, error)
}

// Reporter is satisfied by *notify.Telegram.
type Reporter interface {
	Report(ctx context.Context, s imagecheck.Summary) error
}

type Handle struct {
	checker  Checker
	reporter Reporter // may be nil
}

func New(checker Checker, reporter Reporter) *Handle {
	return &Handle{
		checker:  checker,
		reporter: reporter,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
