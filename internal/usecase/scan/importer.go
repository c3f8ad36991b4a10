package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ballotscan/internal/bootstrap/logging"
	"ballotscan/internal/domain/ballot"
	"ballotscan/internal/errs"
	"ballotscan/internal/interpret"
	"ballotscan/internal/ports"
)

// State is the importer's scanning state.
type State string

const (
	StateIdle                 State = "Idle"
	StateScanningBatch        State = "ScanningBatch"
	StateAwaitingAdjudication State = "AwaitingAdjudication"
)

var (
	ErrBatchInProgress         = errors.New("a batch is already being scanned")
	ErrNotAwaitingAdjudication = errors.New("no sheet is awaiting adjudication")
)

var errBatchAbandoned = errors.New("batch abandoned")

// Status is a snapshot of the importer for status endpoints.
type Status struct {
	State        State                    `json:"state"`
	Batches      []ports.BatchInfo        `json:"batches"`
	Adjudication ports.AdjudicationStatus `json:"adjudication"`
}

// Importer drives the scan pipeline: it pulls sheets from the scanner, runs
// them through the interpreter pool, stores the results, and pauses scanning
// while a sheet waits for human review.
type Importer struct {
	store      ports.Store
	unit       ports.UnitOfWork
	client     interpret.Client
	scanner    ports.BatchScanner
	thresholds ports.MarkThresholds

	mu             sync.Mutex
	state          State
	currentBatchID string
	pendingSheetID string
	resume         chan struct{}
	abort          chan struct{}
	stateChanged   chan struct{}
}

func NewImporter(store ports.Store, unit ports.UnitOfWork, client interpret.Client, batchScanner ports.BatchScanner, defaultThresholds ports.MarkThresholds) (*Importer, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if unit == nil {
		return nil, errors.New("unit of work is required")
	}
	if client == nil {
		return nil, errors.New("interpret client is required")
	}
	if batchScanner == nil {
		return nil, errors.New("batch scanner is required")
	}
	return &Importer{
		store:        store,
		unit:         unit,
		client:       client,
		scanner:      batchScanner,
		thresholds:   defaultThresholds,
		state:        StateIdle,
		resume:       make(chan struct{}, 1),
		stateChanged: make(chan struct{}),
	}, nil
}

// Start brings up the interpreter pool and restores persisted configuration.
func (i *Importer) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if err := i.client.Start(ctx); err != nil {
		return errs.Wrap(err, "start interpreter pool")
	}
	return i.RestoreConfig(ctx)
}

// Stop shuts down the interpreter pool.
func (i *Importer) Stop(ctx context.Context) error {
	return i.client.Stop(ctx)
}

// RestoreConfig pushes the stored election configuration back to the
// interpreter workers and discards batches interrupted by a crash.
func (i *Importer) RestoreConfig(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if err := i.store.CleanupIncompleteBatches(ctx); err != nil {
		return errs.Wrap(err, "cleanup incomplete batches")
	}

	state, err := i.store.GetElectionState(ctx)
	if err != nil {
		return err
	}
	if state.Definition == nil {
		return nil
	}
	return i.syncConfig(ctx)
}

// Configure stores an election definition and configures the workers.
func (i *Importer) Configure(ctx context.Context, definition *ballot.ElectionDefinition) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if definition == nil {
		return errors.New("election definition is required")
	}

	if err := i.store.SetElection(ctx, definition); err != nil {
		return err
	}
	return i.syncConfig(ctx)
}

// Unconfigure wipes all scan data and removes the election. Safe to call in
// any state; a batch in flight is abandoned first.
func (i *Importer) Unconfigure(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := i.abandonBatch(ctx); err != nil {
		return err
	}
	if err := i.store.Zero(ctx); err != nil {
		return err
	}
	return i.store.SetElection(ctx, nil)
}

// SetTestMode toggles test ballot mode. Mode changes wipe scan data since
// test and live ballots must never mix.
func (i *Importer) SetTestMode(ctx context.Context, testMode bool) error {
	if err := i.requireIdle(); err != nil {
		return err
	}
	if err := i.store.Zero(ctx); err != nil {
		return err
	}
	if err := i.store.SetTestMode(ctx, testMode); err != nil {
		return err
	}
	return i.syncConfigIfConfigured(ctx)
}

// SetCurrentPrecinct restricts scanning to one precinct, or to all precincts
// when precinctID is empty.
func (i *Importer) SetCurrentPrecinct(ctx context.Context, precinctID string) error {
	if err := i.store.SetCurrentPrecinct(ctx, precinctID); err != nil {
		return err
	}
	return i.syncConfigIfConfigured(ctx)
}

// SetAdjudicationReasons chooses which reasons send sheets to review.
func (i *Importer) SetAdjudicationReasons(ctx context.Context, reasons []ballot.AdjudicationReason) error {
	if err := i.store.SetAdjudicationReasons(ctx, reasons); err != nil {
		return err
	}
	return i.syncConfigIfConfigured(ctx)
}

// SetMarkThresholds overrides the mark scoring thresholds.
func (i *Importer) SetMarkThresholds(ctx context.Context, thresholds ports.MarkThresholds) error {
	if err := i.store.SetMarkThresholds(ctx, thresholds); err != nil {
		return err
	}
	return i.syncConfigIfConfigured(ctx)
}

// AddHmpbTemplates registers hand-marked ballot layouts. Requires a
// configured election and no batch in progress.
func (i *Importer) AddHmpbTemplates(ctx context.Context, templates []ports.HmpbTemplate) error {
	if err := i.requireIdle(); err != nil {
		return err
	}

	state, err := i.store.GetElectionState(ctx)
	if err != nil {
		return err
	}
	if state.Definition == nil {
		return ballot.ErrNoElection
	}

	for _, template := range templates {
		if _, ok := state.Definition.Election.BallotStyle(template.BallotStyleID); !ok {
			return fmt.Errorf("%w: %q", ballot.ErrUnknownBallotStyle, template.BallotStyleID)
		}
		if err := i.store.AddHmpbTemplate(ctx, template); err != nil {
			return err
		}
	}
	return i.syncConfig(ctx)
}

// DoZero deletes all scanned data but keeps the election configuration. Safe
// to call in any state; a batch in flight is abandoned first.
func (i *Importer) DoZero(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := i.abandonBatch(ctx); err != nil {
		return err
	}
	return i.store.Zero(ctx)
}

// GetStatus reports the importer state, all batches, and review progress.
func (i *Importer) GetStatus(ctx context.Context) (Status, error) {
	if ctx == nil {
		return Status{}, errors.New("context is required")
	}

	batches, err := i.store.ListBatches(ctx)
	if err != nil {
		return Status{}, err
	}
	adjudication, err := i.store.AdjudicationStatus(ctx)
	if err != nil {
		return Status{}, err
	}

	i.mu.Lock()
	state := i.state
	i.mu.Unlock()
	return Status{State: state, Batches: batches, Adjudication: adjudication}, nil
}

// StartImport begins scanning a new batch and returns its id. The batch runs
// on a background goroutine; use WaitForEndOfBatchOrScanningPause to follow
// its progress.
func (i *Importer) StartImport(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	state, err := i.store.GetElectionState(ctx)
	if err != nil {
		return "", err
	}
	if state.Definition == nil {
		return "", ballot.ErrNoElection
	}

	abort := make(chan struct{})
	i.mu.Lock()
	if i.state != StateIdle {
		i.mu.Unlock()
		return "", ErrBatchInProgress
	}
	i.setStateLocked(StateScanningBatch)
	i.abort = abort
	i.mu.Unlock()

	batch, err := i.store.AddBatch(ctx)
	if err != nil {
		i.mu.Lock()
		i.abort = nil
		i.setStateLocked(StateIdle)
		i.mu.Unlock()
		return "", err
	}

	i.mu.Lock()
	i.currentBatchID = batch.ID
	i.mu.Unlock()

	go i.runBatch(context.WithoutCancel(ctx), batch.ID, abort)
	return batch.ID, nil
}

// ContinueImport resumes scanning after a pause for adjudication. With
// override the pending sheet is accepted as scanned, recorded as reviewed
// with no changes; without it the sheet is deleted and must be rescanned
// after correction.
func (i *Importer) ContinueImport(ctx context.Context, override bool) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	i.mu.Lock()
	if i.state != StateAwaitingAdjudication || i.pendingSheetID == "" {
		i.mu.Unlock()
		return ErrNotAwaitingAdjudication
	}
	sheetID := i.pendingSheetID
	i.mu.Unlock()

	if override {
		// both sides commit together or not at all
		err := i.unit.WithTx(ctx, func(txCtx context.Context) error {
			if err := i.store.AdjudicateSheet(txCtx, sheetID, ports.SideFront, ballot.MarksByContestID{}); err != nil {
				return err
			}
			return i.store.AdjudicateSheet(txCtx, sheetID, ports.SideBack, ballot.MarksByContestID{})
		})
		if err != nil {
			return err
		}
	} else {
		if err := i.store.DeleteSheet(ctx, sheetID); err != nil {
			return err
		}
	}

	i.mu.Lock()
	i.pendingSheetID = ""
	i.mu.Unlock()

	select {
	case i.resume <- struct{}{}:
	default:
	}
	return nil
}

// WaitForEndOfBatchOrScanningPause blocks until the importer is no longer
// actively scanning: either the batch finished or a sheet needs review.
func (i *Importer) WaitForEndOfBatchOrScanningPause(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	for {
		i.mu.Lock()
		if i.state != StateScanningBatch {
			i.mu.Unlock()
			return nil
		}
		changed := i.stateChanged
		i.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (i *Importer) runBatch(ctx context.Context, batchID string, abort <-chan struct{}) {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "scan.importer"),
		slog.String("batch_id", batchID),
	)

	// drop any stale resume signal from an aborted batch
	select {
	case <-i.resume:
	default:
	}

	var batchErr error
	batch, err := i.scanner.ScanBatch(ctx)
	if err != nil {
		batchErr = err
	} else {
		batchErr = i.scanSheets(ctx, batch, batchID, abort)
		if err := batch.End(ctx); err != nil && batchErr == nil {
			batchErr = err
		}
	}
	if errors.Is(batchErr, errBatchAbandoned) {
		// the caller is about to zero or unconfigure; the batch record
		// is moments from deletion
		batchErr = nil
	}

	errMsg := ""
	if batchErr != nil {
		errMsg = batchErr.Error()
		logging.Error(logCtx, "batch failed", slog.String("error", errMsg))
	}
	if err := i.store.FinishBatch(ctx, batchID, errMsg); err != nil {
		logging.Error(logCtx, "finish batch", slog.String("error", err.Error()))
	}

	i.mu.Lock()
	i.currentBatchID = ""
	i.pendingSheetID = ""
	i.abort = nil
	i.setStateLocked(StateIdle)
	i.mu.Unlock()
	logging.Info(logCtx, "batch complete")
}

func (i *Importer) scanSheets(ctx context.Context, batch ports.BatchControl, batchID string, abort <-chan struct{}) error {
	for {
		select {
		case <-abort:
			return errBatchAbandoned
		default:
		}

		images, ok, err := batch.ScanSheet(ctx)
		if err != nil {
			return errs.Wrap(err, "scan sheet")
		}
		if !ok {
			return nil
		}

		sheetID, requiresAdjudication, err := i.ImportSheet(ctx, batchID, images)
		if err != nil {
			return errs.Wrap(err, "import sheet")
		}
		if !requiresAdjudication {
			continue
		}

		i.mu.Lock()
		i.pendingSheetID = sheetID
		i.setStateLocked(StateAwaitingAdjudication)
		i.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-abort:
			return errBatchAbandoned
		case <-i.resume:
		}

		i.mu.Lock()
		i.setStateLocked(StateScanningBatch)
		i.mu.Unlock()
	}
}

// ImportSheet runs the interpretation pipeline for one sheet and stores it.
// It reports whether the sheet now blocks scanning pending adjudication.
func (i *Importer) ImportSheet(ctx context.Context, batchID string, images ports.SheetImages) (string, bool, error) {
	if ctx == nil {
		return "", false, errors.New("context is required")
	}

	sheetID := uuid.NewString()

	frontQr, backQr, err := i.detectQrcodes(ctx, images)
	if err != nil {
		return "", false, err
	}
	frontQr, backQr, err = ballot.NormalizeSheetQrcodes(frontQr, backQr)
	if err != nil {
		return "", false, err
	}

	frontPi, backPi, err := i.interpretPages(ctx, sheetID, images, frontQr, backQr)
	if err != nil {
		return "", false, err
	}

	state, err := i.store.GetElectionState(ctx)
	if err != nil {
		return "", false, err
	}
	frontPi = downgradeWrongPrecinct(frontPi, state.CurrentPrecinctID)
	backPi = downgradeWrongPrecinct(backPi, state.CurrentPrecinctID)
	frontPi, backPi = downgradeIncoherentSheet(frontPi, backPi)

	front, err := i.buildPage(ctx, images.Front, frontPi)
	if err != nil {
		return "", false, err
	}
	back, err := i.buildPage(ctx, images.Back, backPi)
	if err != nil {
		return "", false, err
	}

	requiresAdjudication, err := i.store.AddSheet(ctx, sheetID, batchID, front, back)
	if err != nil {
		return "", false, err
	}
	return sheetID, requiresAdjudication, nil
}

// detectQrcodes fans both sides out to the worker pool.
func (i *Importer) detectQrcodes(ctx context.Context, images ports.SheetImages) (*ballot.Qrcode, *ballot.Qrcode, error) {
	type result struct {
		qrcode *ballot.Qrcode
		err    error
	}

	frontCh := make(chan result, 1)
	go func() {
		qrcode, err := i.client.DetectQrcode(ctx, images.Front)
		frontCh <- result{qrcode, err}
	}()

	backQr, backErr := i.client.DetectQrcode(ctx, images.Back)
	front := <-frontCh
	if front.err != nil {
		return nil, nil, front.err
	}
	if backErr != nil {
		return nil, nil, backErr
	}
	return front.qrcode, backQr, nil
}

func (i *Importer) interpretPages(
	ctx context.Context,
	sheetID string,
	images ports.SheetImages,
	frontQr, backQr *ballot.Qrcode,
) (ballot.PageInterpretation, ballot.PageInterpretation, error) {
	type result struct {
		pi  ballot.PageInterpretation
		err error
	}

	frontCh := make(chan result, 1)
	go func() {
		pi, err := i.client.Interpret(ctx, sheetID, images.Front, frontQr)
		frontCh <- result{pi, err}
	}()

	backPi, backErr := i.client.Interpret(ctx, sheetID, images.Back, backQr)
	front := <-frontCh
	if front.err != nil {
		return nil, nil, front.err
	}
	if backErr != nil {
		return nil, nil, backErr
	}
	return front.pi, backPi, nil
}

func (i *Importer) buildPage(ctx context.Context, imagePath string, pi ballot.PageInterpretation) (ports.Page, error) {
	page := ports.Page{
		Files:          ports.PageFiles{Original: imagePath, Normalized: imagePath},
		Interpretation: pi,
	}

	if metadata, ok := ballot.PageMetadataOf(pi); ok && metadata.PageNumber > 0 {
		contestIDs, err := i.store.ContestIDsForPage(ctx, metadata)
		if err != nil {
			return ports.Page{}, err
		}
		page.ContestIDs = contestIDs
	}
	return page, nil
}

// downgradeWrongPrecinct rejects ballots for other precincts when the scanner
// is pinned to one.
func downgradeWrongPrecinct(pi ballot.PageInterpretation, currentPrecinctID string) ballot.PageInterpretation {
	if currentPrecinctID == "" {
		return pi
	}

	metadata, ok := ballot.PageMetadataOf(pi)
	if !ok || metadata.PrecinctID == currentPrecinctID {
		return pi
	}
	switch pi.(type) {
	case ballot.InvalidTestModePage, ballot.InvalidPrecinctPage, ballot.UnreadablePage, ballot.BlankPage:
		return pi
	}
	return ballot.InvalidPrecinctPage{Metadata: metadata}
}

// downgradeIncoherentSheet turns a hand-marked pair that fails coherence
// checks into unreadable pages so the sheet lands in the review queue instead
// of poisoning export.
func downgradeIncoherentSheet(front, back ballot.PageInterpretation) (ballot.PageInterpretation, ballot.PageInterpretation) {
	frontMeta, backMeta, ok := ballot.HmpbSheetMetadata(front, back)
	if !ok {
		return front, back
	}
	if err := ballot.ValidateHmpbSheet(frontMeta, backMeta); err != nil {
		return ballot.UnreadablePage{Reason: err.Error()}, ballot.UnreadablePage{Reason: err.Error()}
	}
	return front, back
}

func (i *Importer) requireIdle() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateIdle {
		return ErrBatchInProgress
	}
	return nil
}

// abandonBatch stops an in-flight batch and waits for the run goroutine to
// settle back to idle. A no-op when nothing is scanning.
func (i *Importer) abandonBatch(ctx context.Context) error {
	i.mu.Lock()
	if i.state == StateIdle {
		i.mu.Unlock()
		return nil
	}
	if i.abort != nil {
		select {
		case <-i.abort:
		default:
			close(i.abort)
		}
	}
	i.mu.Unlock()

	for {
		i.mu.Lock()
		if i.state == StateIdle {
			i.mu.Unlock()
			return nil
		}
		changed := i.stateChanged
		i.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (i *Importer) syncConfigIfConfigured(ctx context.Context) error {
	state, err := i.store.GetElectionState(ctx)
	if err != nil {
		return err
	}
	if state.Definition == nil {
		return nil
	}
	return i.syncConfig(ctx)
}

// syncConfig pushes the full stored configuration to every worker.
func (i *Importer) syncConfig(ctx context.Context) error {
	state, err := i.store.GetElectionState(ctx)
	if err != nil {
		return err
	}
	if state.Definition == nil {
		return ballot.ErrNoElection
	}
	templates, err := i.store.ListHmpbTemplates(ctx)
	if err != nil {
		return err
	}

	thresholds := state.MarkThresholds
	if thresholds.Marginal == 0 && thresholds.Definite == 0 {
		thresholds = i.thresholds
	}

	return i.client.Configure(ctx, interpret.Config{
		Election:            state.Definition,
		TestMode:            state.TestMode,
		CurrentPrecinctID:   state.CurrentPrecinctID,
		AdjudicationReasons: state.AdjudicationReasons,
		MarkThresholds:      thresholds,
		Templates:           templates,
	})
}

// setStateLocked transitions state and wakes waiters. Callers hold i.mu.
func (i *Importer) setStateLocked(next State) {
	if i.state == next {
		return
	}
	i.state = next
	close(i.stateChanged)
	i.stateChanged = make(chan struct{})
}
