package domain

import "time"

type EntryStatus string

const (
	EntrySuccess         EntryStatus = "success"
	EntryNoResults       EntryStatus = "no_results"
	EntryNoCertificate   EntryStatus = "no_certificate"
	EntryEmptyArtifact   EntryStatus = "empty_artifact"
	EntryNavigationError EntryStatus = "navigation_error"
	EntryTransportError  EntryStatus = "transport_error"
)

// ProcessingEntry is the last recorded outcome for a normalized address.
type ProcessingEntry struct {
	Key             string            `json:"key"`
	Status          EntryStatus       `json:"status"`
	Timestamp       time.Time         `json:"timestamp"`
	ExtractedFields CertificateRecord `json:"extracted_fields"`
	ArtifactRef     string            `json:"artifact_ref,omitempty"`
	Error           string            `json:"error,omitempty"`
}

func (e *ProcessingEntry) Succeeded() bool {
	return e != nil && e.Status == EntrySuccess
}

// EntryStatusFor converts a result status to the status kept in the ledger.
func EntryStatusFor(status ResultStatus) EntryStatus {
	if status == ResultDownloaded {
		return EntrySuccess
	}
	return EntryStatus(status)
}
