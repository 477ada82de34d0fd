package ports

import (
	"context"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

// SessionManager drives the portal login to a terminal state.
type SessionManager interface {
	Ensure(ctx context.Context, creds domain.Credentials) error
}

// RecordLocator finds and opens the search result for an address.
type RecordLocator interface {
	Locate(ctx context.Context, query domain.AddressQuery) (*domain.RecordHandle, error)
}

// DetailNavigator reaches the record's detail view and fires its document action.
type DetailNavigator interface {
	OpenDetail(ctx context.Context, handle *domain.RecordHandle) (RenderedView, error)
	TriggerDownload(ctx context.Context) error
}

// RenderedView is a snapshot of the detail view.
type RenderedView interface {
	// LabeledValue returns the value shown next to the first matching label.
	LabeledValue(labels ...string) (string, bool)
	// Text is the flattened visible text, one block per line.
	Text() string
}

// FieldExtractor reads certificate metadata from a view. It never fails.
type FieldExtractor interface {
	Extract(view RenderedView) domain.CertificateRecord
}

// ArtifactCapture fires trigger and captures whatever document it produces.
type ArtifactCapture interface {
	Capture(ctx context.Context, trigger func(context.Context) error) (domain.Artifact, error)
}

// ProcessingLedger is the durable key -> last outcome map.
// Get returns nil, nil when the key has never been recorded.
type ProcessingLedger interface {
	Get(ctx context.Context, key string) (*domain.ProcessingEntry, error)
	Put(ctx context.Context, key string, entry domain.ProcessingEntry) error
}

// ArtifactStore persists captured documents and returns a reference to them.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// DocumentUploader mirrors an artifact to a third-party host.
// A nil ref with a nil error means mirroring is not configured.
type DocumentUploader interface {
	Upload(ctx context.Context, data []byte, name, contentType string) (*domain.UploadRef, error)
}

// ArtifactInspector reads document properties such as the page count.
type ArtifactInspector interface {
	PageCount(data []byte) (int, error)
}

// ResultSink receives one record per processed address.
type ResultSink interface {
	Append(ctx context.Context, record domain.ResultRecord) error
}

// DiagnosticsSink keeps screenshots and HTML dumps for human debugging.
type DiagnosticsSink interface {
	Capture(ctx context.Context, label string)
}

// Pacer spaces out network-sensitive actions.
type Pacer interface {
	Pause(ctx context.Context) error
}

// AddressQueue carries address requests from the API to the worker.
type AddressQueue interface {
	PublishAddressRequested(ctx context.Context, address string) error
	SubscribeAddressRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// HarvestObserver records pipeline metrics.
type HarvestObserver interface {
	StartAddress()
	FinishAddress(status domain.ResultStatus, seconds float64)
	ObserveSkip()
	ObserveArtifact(channel domain.CaptureChannel, sizeBytes int)
}
