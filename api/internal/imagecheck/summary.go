package imagecheck

import "strings"

// Summary is the caller-side reading of a CheckResponse.
type Summary struct {
	Code   int            `json:"code"`
	Msg    string         `json:"msg"`
	OK     bool           `json:"ok"`
	Images []ImageSummary `json:"images,omitempty"`
	Counts Counts         `json:"counts"`
}

type Counts struct {
	Normal     int `json:"normal"`
	Suspicious int `json:"suspicious"`
	Confirmed  int `json:"confirmed"`
	Failed     int `json:"failed"`
}

type ImageSummary struct {
	Name          string  `json:"name"`
	TaskID        string  `json:"taskId"`
	Status        int     `json:"status"`
	Failed        bool    `json:"failed"`
	FailureReason string  `json:"failureReason,omitempty"`
	Action        *int    `json:"action,omitempty"`
	Verdict       string  `json:"verdict,omitempty"`
	Labels        []Label `json:"labels,omitempty"`

	// Filled from the ocr/face/quality sections when present.
	OCRText        string   `json:"ocrText,omitempty"`
	FaceCount      *int     `json:"faceCount,omitempty"`
	AestheticsRate *float64 `json:"aestheticsRate,omitempty"`
	HasAntispam    bool     `json:"hasAntispam"`
}

// Flagged reports an image that needs attention: suspicious or confirmed.
func (s ImageSummary) Flagged() bool {
	return !s.Failed && s.Action != nil && *s.Action >= ActionSuspicious
}

func ActionText(action int) string {
	switch action {
	case ActionNormal:
		return "normal"
	case ActionSuspicious:
		return "suspicious"
	case ActionConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

func StatusText(status int) string {
	switch status {
	case StatusSuccess:
		return "success"
	case StatusDownloadFailed:
		return "image download failed"
	case StatusBadFormat:
		return "bad image format"
	case StatusOther:
		return "other error"
	default:
		return "unknown status"
	}
}

// Summarize turns a response into per-image verdicts. A failed item never hides
// its siblings; ocr/face/quality entries are joined to antispam ones by taskId,
// then by name.
func Summarize(resp *CheckResponse) Summary {
	if resp == nil {
		return Summary{}
	}
	s := Summary{Code: resp.Code, Msg: resp.Msg, OK: resp.OK()}
	if !s.OK {
		return s
	}

	idx := map[string]int{}
	lookup := func(taskID, name string) *ImageSummary {
		if i, ok := idx["t:"+taskID]; ok && taskID != "" {
			return &s.Images[i]
		}
		if i, ok := idx["n:"+name]; ok && name != "" {
			return &s.Images[i]
		}
		s.Images = append(s.Images, ImageSummary{Name: name, TaskID: taskID, Status: StatusSuccess})
		i := len(s.Images) - 1
		if taskID != "" {
			idx["t:"+taskID] = i
		}
		if name != "" {
			idx["n:"+name] = i
		}
		return &s.Images[i]
	}

	for _, a := range resp.Antispam {
		img := ImageSummary{
			Name:        a.Name,
			TaskID:      a.TaskID,
			Status:      a.Status,
			HasAntispam: true,
		}
		if a.Status != StatusSuccess {
			img.Failed = true
			img.FailureReason = StatusText(a.Status)
			s.Counts.Failed++
		} else {
			img.Labels = a.Labels
			action := maxLevel(a.Labels)
			if a.Action != nil {
				action = *a.Action
			}
			img.Action = &action
			img.Verdict = ActionText(action)
			switch action {
			case ActionSuspicious:
				s.Counts.Suspicious++
			case ActionConfirmed:
				s.Counts.Confirmed++
			default:
				s.Counts.Normal++
			}
		}
		s.Images = append(s.Images, img)
		i := len(s.Images) - 1
		if a.TaskID != "" {
			idx["t:"+a.TaskID] = i
		}
		if a.Name != "" {
			idx["n:"+a.Name] = i
		}
	}

	for _, o := range resp.OCR {
		img := lookup(o.TaskID, o.Name)
		var parts []string
		for _, d := range o.Details {
			if t := strings.TrimSpace(d.Content); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			if img.OCRText != "" {
				parts = append([]string{img.OCRText}, parts...)
			}
			img.OCRText = strings.Join(parts, "\n")
		}
	}

	for _, f := range resp.Face {
		img := lookup(f.TaskID, f.Name)
		n := 0
		if img.FaceCount != nil {
			n = *img.FaceCount
		}
		for _, d := range f.Details {
			n += d.FaceNumber
		}
		img.FaceCount = &n
	}

	for _, q := range resp.Quality {
		img := lookup(q.TaskID, q.Name)
		for _, d := range q.Details {
			rate := d.AestheticsRate
			img.AestheticsRate = &rate
		}
	}
	return s
}

// maxLevel is the fallback when the server omits action on a successful item.
func maxLevel(labels []Label) int {
	m := ActionNormal
	for _, l := range labels {
		if l.Level > m {
			m = l.Level
		}
	}
	return m
}
