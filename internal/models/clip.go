package models

// OverlayKind selects the destination the end-card overlay points to.
type OverlayKind string

const (
	OverlayTip     OverlayKind = "tip"
	OverlayTicket  OverlayKind = "ticket"
	OverlayContent OverlayKind = "content"
	OverlayMerch   OverlayKind = "merch"
)

func (k OverlayKind) Valid() bool {
	switch k {
	case OverlayTip, OverlayTicket, OverlayContent, OverlayMerch:
		return true
	}
	return false
}

// Orientation selects the output frame.
type Orientation string

const (
	OrientationVertical  Orientation = "vertical"
	OrientationLandscape Orientation = "landscape"
)

// FrameSize returns the output width and height for the orientation.
func (o Orientation) FrameSize() (int, int) {
	if o == OrientationLandscape {
		return 1920, 1080
	}
	return 1080, 1920
}

// ThumbnailSize returns the still-frame size for the orientation.
func (o Orientation) ThumbnailSize() (int, int) {
	if o == OrientationLandscape {
		return 640, 360
	}
	return 360, 640
}

type CaptionMode string

const (
	CaptionAuto     CaptionMode = "auto"
	CaptionSupplied CaptionMode = "supplied"
)

type CaptionOrigin string

const (
	OriginAIGenerated    CaptionOrigin = "ai-generated"
	OriginFallback       CaptionOrigin = "fallback-template"
	OriginCallerSupplied CaptionOrigin = "caller-supplied"
)

// ClipRequest is the validated, immutable input of one pipeline run.
type ClipRequest struct {
	UserID       int64
	Media        SourceMedia
	StartSeconds float64
	EndSeconds   float64
	OverlayKind  OverlayKind
	Orientation  Orientation
	CaptionMode  CaptionMode
	Caption      string
}

func (r ClipRequest) DurationSeconds() float64 {
	return r.EndSeconds - r.StartSeconds
}

// OverlayAsset is the rendered end-card image stored in the transcoding service.
type OverlayAsset struct {
	DestinationURL string
	PublicID       string
}

type TransformStatus string

const (
	TransformSubmitted TransformStatus = "submitted"
	TransformPending   TransformStatus = "pending"
	TransformReady     TransformStatus = "ready"
	TransformTimedOut  TransformStatus = "timed-out"
)

// TransformJob tracks the asynchronous edit of the raw source copy.
type TransformJob struct {
	SourcePublicID string
	Transformation string
	ResultURL      string
	Status         TransformStatus
}

type CaptionResult struct {
	Text     string        `json:"text"`
	Hashtags []string      `json:"hashtags"`
	Origin   CaptionOrigin `json:"origin"`
}
