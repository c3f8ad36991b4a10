package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"ballotscan/internal/domain/ballot"
)

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrSheetNotFound = errors.New("sheet not found")
)

// Side names one side of a sheet.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// PageFiles locates the image files captured for one side of a sheet.
type PageFiles struct {
	Original   string
	Normalized string
}

// Page is one stored side of a sheet.
type Page struct {
	Files          PageFiles
	Interpretation ballot.PageInterpretation
	ContestIDs     []string
	Adjudication   ballot.MarksByContestID
	AdjudicatedAt  *time.Time
}

// SheetInfo is a stored sheet with both sides.
type SheetInfo struct {
	ID      string
	BatchID string
	Front   Page
	Back    Page
}

// BatchInfo summarizes one scan batch.
type BatchInfo struct {
	ID         string
	Label      string
	StartedAt  time.Time
	EndedAt    *time.Time
	Error      string
	SheetCount int
}

// AdjudicationStatus counts reviewed and still-pending sheets.
type AdjudicationStatus struct {
	Adjudicated int
	Remaining   int
}

// ElectionState is the scanner's persisted configuration.
type ElectionState struct {
	Definition          *ballot.ElectionDefinition
	TestMode            bool
	CurrentPrecinctID   string
	AdjudicationReasons []ballot.AdjudicationReason
	MarkThresholds      MarkThresholds
}

// MarkThresholds are the scores separating marginal from definite marks.
type MarkThresholds struct {
	Marginal float64 `json:"marginal"`
	Definite float64 `json:"definite"`
}

// HmpbTemplate is an uploaded hand-marked ballot layout: which contests
// appear on which page of a ballot style.
type HmpbTemplate struct {
	BallotStyleID string
	PrecinctID    string
	PageNumber    int
	ContestIDs    []string
}

// Store is the scan state repository: election configuration, batches,
// sheets, adjudications, and export.
type Store interface {
	GetElectionState(ctx context.Context) (ElectionState, error)
	SetElection(ctx context.Context, definition *ballot.ElectionDefinition) error
	SetTestMode(ctx context.Context, testMode bool) error
	SetCurrentPrecinct(ctx context.Context, precinctID string) error
	SetAdjudicationReasons(ctx context.Context, reasons []ballot.AdjudicationReason) error
	SetMarkThresholds(ctx context.Context, thresholds MarkThresholds) error

	AddHmpbTemplate(ctx context.Context, template HmpbTemplate) error
	ListHmpbTemplates(ctx context.Context) ([]HmpbTemplate, error)
	ContestIDsForPage(ctx context.Context, metadata ballot.PageMetadata) ([]string, error)

	AddBatch(ctx context.Context) (BatchInfo, error)
	FinishBatch(ctx context.Context, batchID string, batchError string) error
	ListBatches(ctx context.Context) ([]BatchInfo, error)
	CleanupIncompleteBatches(ctx context.Context) error

	AddSheet(ctx context.Context, sheetID, batchID string, front, back Page) (requiresAdjudication bool, err error)
	GetSheet(ctx context.Context, sheetID string) (SheetInfo, error)
	DeleteSheet(ctx context.Context, sheetID string) error
	GetNextAdjudicationSheet(ctx context.Context) (*SheetInfo, error)
	AdjudicateSheet(ctx context.Context, sheetID string, side Side, marks ballot.MarksByContestID) error
	AdjudicationStatus(ctx context.Context) (AdjudicationStatus, error)

	ExportCvrs(ctx context.Context, w io.Writer) error
	Zero(ctx context.Context) error
	Backup(ctx context.Context, destPath string) error
}
