package domain

// CaptureChannel identifies how the target delivered a generated document.
type CaptureChannel string

const (
	ChannelNone     CaptureChannel = ""
	ChannelDownload CaptureChannel = "download"
	ChannelPopup    CaptureChannel = "popup"
	ChannelResponse CaptureChannel = "response"
)

// Artifact is a captured document. SizeBytes == 0 means nothing was produced.
type Artifact struct {
	Bytes             []byte         `json:"-"`
	ContentType       string         `json:"content_type,omitempty"`
	SuggestedFileName string         `json:"suggested_file_name,omitempty"`
	SizeBytes         int            `json:"size_bytes"`
	Channel           CaptureChannel `json:"channel,omitempty"`
}

func NewArtifact(channel CaptureChannel, data []byte, contentType, name string) Artifact {
	return Artifact{
		Bytes:             data,
		ContentType:       contentType,
		SuggestedFileName: name,
		SizeBytes:         len(data),
		Channel:           channel,
	}
}

func (a Artifact) Empty() bool {
	return a.SizeBytes == 0
}

// UploadRef identifies a mirrored copy in a third-party document host.
type UploadRef struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}
