package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
)

// Pipeline steps recorded on failed items.
const (
	StepLocate     = "locate"
	StepOpenDetail = "open_detail"
	StepCapture    = "capture"
	StepStore      = "store_artifact"
)

// HarvestDeps are the collaborators of a run. Store, Uploader, Inspector,
// Diagnostics, Pacer and Observer are optional.
type HarvestDeps struct {
	Session     ports.SessionManager
	Locator     ports.RecordLocator
	Detail      ports.DetailNavigator
	Extractor   ports.FieldExtractor
	Capture     ports.ArtifactCapture
	Ledger      ports.ProcessingLedger
	Sink        ports.ResultSink
	Store       ports.ArtifactStore
	Uploader    ports.DocumentUploader
	Inspector   ports.ArtifactInspector
	Diagnostics ports.DiagnosticsSink
	Pacer       ports.Pacer
	Observer    ports.HarvestObserver
}

type HarvestOptions struct {
	Credentials domain.Credentials
	// MaxItems caps processed addresses per run; 0 means no cap.
	MaxItems    int
	ItemTimeout time.Duration
	// PersistTimeout bounds ledger, store and sink writes, which run even
	// after the item context expired.
	PersistTimeout time.Duration
}

type HarvestUseCase struct {
	deps   HarvestDeps
	opts   HarvestOptions
	logger *slog.Logger

	now   func() time.Time
	runID func() string
}

func NewHarvestUseCase(deps HarvestDeps, opts HarvestOptions, logger *slog.Logger) *HarvestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 3 * time.Minute
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 15 * time.Second
	}
	return &HarvestUseCase{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		runID:  uuid.NewString,
	}
}

// Run processes addresses strictly in order, one at a time. It stops early
// only on an authentication failure or when ctx is done.
func (uc *HarvestUseCase) Run(ctx context.Context, addresses []string) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		RunID:    uc.runID(),
		Total:    len(addresses),
		ByStatus: make(map[domain.ResultStatus]int),
	}
	logger := uc.logger.With("run_id", summary.RunID)
	logger.Info("run_started", "addresses", len(addresses), "max_items", uc.opts.MaxItems)

	sessionReady := false
	for i, raw := range addresses {
		if err := ctx.Err(); err != nil {
			logger.Warn("run_cancelled", "remaining", len(addresses)-i)
			return summary, err
		}
		query := domain.NewAddressQuery(raw)

		if uc.alreadySucceeded(ctx, logger, query) {
			summary.Skipped++
			continue
		}
		if uc.opts.MaxItems > 0 && summary.Processed >= uc.opts.MaxItems {
			summary.Capped++
			logger.Info("address_capped", "address", query.Raw, "max_items", uc.opts.MaxItems)
			continue
		}

		if !sessionReady {
			if err := uc.deps.Session.Ensure(ctx, uc.opts.Credentials); err != nil {
				logger.Error("run_aborted", "error", err)
				return summary, err
			}
			sessionReady = true
		}

		rec := uc.harvest(ctx, logger, summary.RunID, query)
		summary.Processed++
		summary.ByStatus[rec.Status]++

		if i < len(addresses)-1 {
			if err := uc.pause(ctx); err != nil {
				logger.Warn("run_cancelled", "remaining", len(addresses)-i-1)
				return summary, err
			}
		}
	}

	logger.Info("run_finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"capped", summary.Capped,
		"by_status", summary.ByStatus,
	)
	return summary, nil
}

func (uc *HarvestUseCase) alreadySucceeded(ctx context.Context, logger *slog.Logger, query domain.AddressQuery) bool {
	if query.NormalizedKey == "" {
		return false
	}
	entry, err := uc.deps.Ledger.Get(ctx, query.NormalizedKey)
	if err != nil {
		logger.Warn("ledger_get_failed", "address", query.Raw, "key", query.NormalizedKey, "error", err)
		return false
	}
	if !entry.Succeeded() {
		return false
	}
	logger.Info("address_skipped", "address", query.Raw, "key", query.NormalizedKey, "recorded_at", entry.Timestamp)
	if uc.deps.Observer != nil {
		uc.deps.Observer.ObserveSkip()
	}
	return true
}

// harvest runs one address through the pipeline and always records the
// outcome, whether it succeeded or not.
func (uc *HarvestUseCase) harvest(ctx context.Context, logger *slog.Logger, runID string, query domain.AddressQuery) domain.ResultRecord {
	started := uc.now()
	if uc.deps.Observer != nil {
		uc.deps.Observer.StartAddress()
	}

	itemCtx, cancel := context.WithTimeout(ctx, uc.opts.ItemTimeout)
	record, artifact, err := uc.pipeline(itemCtx, query)
	timedOut := errors.Is(itemCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	rec := domain.ResultRecord{
		CertificateRecord: record,
		RunID:             runID,
		Address:           query.Raw,
		NormalizedKey:     query.NormalizedKey,
	}

	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), uc.opts.PersistTimeout)
	defer cancelPersist()

	switch {
	case err != nil && timedOut:
		rec.Status = domain.ResultTransportError
		rec.FailedStep = domain.FailedStep(err)
		rec.Error = fmt.Sprintf("item timeout after %s: %v", uc.opts.ItemTimeout, err)
	case err != nil:
		rec.Status = domain.StatusForError(err)
		rec.FailedStep = domain.FailedStep(err)
		rec.Error = err.Error()
	default:
		rec.Status = domain.ArtifactStatus(artifact)
		rec.ArtifactSize = artifact.SizeBytes
		rec.ArtifactChannel = string(artifact.Channel)
		if !artifact.Empty() {
			if storeErr := uc.keepArtifact(persistCtx, logger, query, artifact, &rec); storeErr != nil {
				rec.Status = domain.StatusForError(storeErr)
				rec.FailedStep = StepStore
				rec.Error = storeErr.Error()
			}
		}
	}

	if rec.Status != domain.ResultDownloaded && rec.Error != "" && uc.deps.Diagnostics != nil {
		uc.deps.Diagnostics.Capture(persistCtx, rec.FailedStep+"_"+query.NormalizedKey)
	}

	rec.ProcessedAt = uc.now()
	uc.recordOutcome(persistCtx, logger, rec)

	elapsed := rec.ProcessedAt.Sub(started)
	if uc.deps.Observer != nil {
		uc.deps.Observer.FinishAddress(rec.Status, elapsed.Seconds())
	}
	logger.Info("address_processed",
		"address", query.Raw,
		"key", query.NormalizedKey,
		"status", rec.Status,
		"failed_step", rec.FailedStep,
		"fields_found", record.Found(),
		"artifact_bytes", rec.ArtifactSize,
		"duration_ms", elapsed.Milliseconds(),
	)
	return rec
}

func (uc *HarvestUseCase) pipeline(ctx context.Context, query domain.AddressQuery) (domain.CertificateRecord, domain.Artifact, error) {
	handle, err := uc.deps.Locator.Locate(ctx, query)
	if err != nil {
		return domain.CertificateRecord{}, domain.Artifact{}, domain.AtStep(StepLocate, err)
	}
	if err := uc.pause(ctx); err != nil {
		return domain.CertificateRecord{}, domain.Artifact{}, domain.AtStep(StepLocate, domain.WrapError(domain.ErrTransport, "pace", err))
	}

	view, err := uc.deps.Detail.OpenDetail(ctx, handle)
	if err != nil {
		return domain.CertificateRecord{}, domain.Artifact{}, domain.AtStep(StepOpenDetail, err)
	}
	record := uc.deps.Extractor.Extract(view)

	artifact, err := uc.deps.Capture.Capture(ctx, uc.deps.Detail.TriggerDownload)
	if uc.deps.Observer != nil && err == nil {
		uc.deps.Observer.ObserveArtifact(artifact.Channel, artifact.SizeBytes)
	}
	if err != nil {
		return record, domain.Artifact{}, domain.AtStep(StepCapture, err)
	}
	return record, artifact, nil
}

// keepArtifact stores the artifact, reads its page count and mirrors it.
// Only the store is required; inspection and mirroring failures are logged.
func (uc *HarvestUseCase) keepArtifact(ctx context.Context, logger *slog.Logger, query domain.AddressQuery, artifact domain.Artifact, rec *domain.ResultRecord) error {
	if uc.deps.Store != nil {
		ref, err := uc.deps.Store.Put(ctx, query.NormalizedKey, artifact.Bytes, artifact.ContentType)
		if err != nil {
			return domain.WrapError(domain.ErrTransport, "store artifact", err)
		}
		created := uc.now()
		rec.ArtifactRef = ref
		rec.ArtifactCreatedAt = &created
	}

	if uc.deps.Inspector != nil {
		pages, err := uc.deps.Inspector.PageCount(artifact.Bytes)
		if err != nil {
			logger.Warn("artifact_inspect_failed", "address", query.Raw, "content_type", artifact.ContentType, "error", err)
		} else {
			rec.ArtifactPages = pages
		}
	}

	if uc.deps.Uploader != nil {
		name := artifact.SuggestedFileName
		if name == "" {
			name = rec.ArtifactRef
		}
		ref, err := uc.deps.Uploader.Upload(ctx, artifact.Bytes, name, artifact.ContentType)
		switch {
		case err != nil:
			logger.Warn("artifact_upload_failed", "address", query.Raw, "error", err)
		case ref != nil:
			rec.UploadID = ref.ID
			rec.UploadLink = ref.Link
		}
	}
	return nil
}

func (uc *HarvestUseCase) recordOutcome(ctx context.Context, logger *slog.Logger, rec domain.ResultRecord) {
	if rec.NormalizedKey != "" {
		entry := domain.ProcessingEntry{
			Key:             rec.NormalizedKey,
			Status:          domain.EntryStatusFor(rec.Status),
			Timestamp:       rec.ProcessedAt,
			ExtractedFields: rec.CertificateRecord,
			ArtifactRef:     rec.ArtifactRef,
			Error:           rec.Error,
		}
		if err := uc.deps.Ledger.Put(ctx, rec.NormalizedKey, entry); err != nil {
			logger.Error("ledger_put_failed", "address", rec.Address, "key", rec.NormalizedKey, "error", err)
		}
	}
	if err := uc.deps.Sink.Append(ctx, rec); err != nil {
		logger.Error("result_append_failed", "address", rec.Address, "error", err)
	}
}

func (uc *HarvestUseCase) pause(ctx context.Context) error {
	if uc.deps.Pacer == nil {
		return nil
	}
	return uc.deps.Pacer.Pause(ctx)
}
