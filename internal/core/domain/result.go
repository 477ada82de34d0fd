package domain

import "time"

type ResultStatus string

const (
	ResultDownloaded      ResultStatus = "downloaded"
	ResultNoResults       ResultStatus = "no_results"
	ResultNoCertificate   ResultStatus = "no_certificate"
	ResultEmptyArtifact   ResultStatus = "empty_artifact"
	ResultNavigationError ResultStatus = "navigation_error"
	ResultTransportError  ResultStatus = "transport_error"
)

// ResultRecord is emitted once per processed address per run.
type ResultRecord struct {
	CertificateRecord

	RunID             string       `json:"run_id"`
	Address           string       `json:"address"`
	NormalizedKey     string       `json:"normalized_key"`
	Status            ResultStatus `json:"status"`
	Error             string       `json:"error,omitempty"`
	FailedStep        string       `json:"failed_step,omitempty"`
	ArtifactRef       string       `json:"artifact_ref,omitempty"`
	ArtifactSize      int          `json:"artifact_size_bytes,omitempty"`
	ArtifactChannel   string       `json:"artifact_channel,omitempty"`
	ArtifactPages     int          `json:"artifact_pages,omitempty"`
	UploadID          string       `json:"upload_id,omitempty"`
	UploadLink        string       `json:"upload_link,omitempty"`
	ProcessedAt       time.Time    `json:"processed_at"`
	ArtifactCreatedAt *time.Time   `json:"artifact_created_at,omitempty"`
}

// ArtifactStatus classifies a capture outcome that did not raise an error.
func ArtifactStatus(a Artifact) ResultStatus {
	switch {
	case !a.Empty():
		return ResultDownloaded
	case a.Channel == ChannelNone:
		return ResultNoCertificate
	default:
		return ResultEmptyArtifact
	}
}

// RunSummary aggregates the outcomes of one invocation.
type RunSummary struct {
	RunID     string               `json:"run_id"`
	Total     int                  `json:"total"`
	Processed int                  `json:"processed"`
	Skipped   int                  `json:"skipped"`
	Capped    int                  `json:"capped"`
	ByStatus  map[ResultStatus]int `json:"by_status"`
}

// Credentials are the portal login values.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}
