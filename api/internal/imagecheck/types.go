package imagecheck

type ImageType int

const (
	ImageURL    ImageType = 1 // up to 100 images per call
	ImageBase64 ImageType = 2 // up to 10MB payload per call
)

type ImageDescriptor struct {
	Name string    `json:"name"`
	Type ImageType `json:"type"`
	Data string    `json:"data"`
}

// Antispam status codes.
const (
	StatusSuccess        = 0
	StatusDownloadFailed = 610
	StatusBadFormat      = 620
	StatusOther          = 630
)

// Antispam actions, the highest level over all labels of an image.
const (
	ActionNormal     = 0
	ActionSuspicious = 1
	ActionConfirmed  = 2
)

const CodeOK = 200

type CheckResponse struct {
	Code     int              `json:"code"`
	Msg      string           `json:"msg"`
	Antispam []AntispamResult `json:"antispam,omitempty"`
	OCR      []OCRResult      `json:"ocr,omitempty"`
	Face     []FaceResult     `json:"face,omitempty"`
	Quality  []QualityResult  `json:"quality,omitempty"`
}

func (r *CheckResponse) OK() bool { return r != nil && r.Code == CodeOK }

type AntispamResult struct {
	Name   string  `json:"name"`
	TaskID string  `json:"taskId"`
	Status int     `json:"status"`
	Action *int    `json:"action,omitempty"` // only when Status == StatusSuccess
	Labels []Label `json:"labels,omitempty"`
}

type Label struct {
	Label     int     `json:"label"`
	Level     int     `json:"level"`
	Rate      float64 `json:"rate"` // 0..1
	SubLabels []int   `json:"subLabels"`
}

type OCRResult struct {
	Name    string      `json:"name"`
	TaskID  string      `json:"taskId"`
	Details []OCRDetail `json:"details,omitempty"`
}

type OCRDetail struct {
	Content      string    `json:"content"`
	LineContents []OCRLine `json:"lineContents,omitempty"`
}

type OCRLine struct {
	LineContent string    `json:"lineContent"`
	Polygon     []float64 `json:"polygon,omitempty"`
}

type FaceResult struct {
	Name    string       `json:"name"`
	TaskID  string       `json:"taskId"`
	Details []FaceDetail `json:"details,omitempty"`
}

type FaceDetail struct {
	FaceNumber   int           `json:"faceNumber"`
	FaceContents []FaceContent `json:"faceContents,omitempty"`
}

type FaceContent struct {
	Type string  `json:"type,omitempty"`
	Name string  `json:"name,omitempty"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
}

type QualityResult struct {
	Name    string          `json:"name"`
	TaskID  string          `json:"taskId"`
	Details []QualityDetail `json:"details,omitempty"`
}

type QualityDetail struct {
	AestheticsRate float64     `json:"aestheticsRate"`
	MetaInfo       *MetaInfo   `json:"metaInfo,omitempty"`
	BoarderInfo    *BorderInfo `json:"boarderInfo,omitempty"` // sic, wire name
}

type MetaInfo struct {
	ByteSize int64  `json:"byteSize"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Format   string `json:"format"`
}

type BorderInfo struct {
	Hit    bool `json:"hit"`
	Top    bool `json:"top"`
	Right  bool `json:"right"`
	Bottom bool `json:"bottom"`
	Left   bool `json:"left"`
}
