package ports

import "context"

// SheetImages is one physical sheet as captured by a scanner: the image file
// for each side.
type SheetImages struct {
	Front string
	Back  string
}

// BatchControl is a pull cursor over the sheets of one scanning session.
// Callers alternate ScanSheet until it reports no more sheets, then End.
type BatchControl interface {
	// ScanSheet captures the next sheet, returning false when the feeder
	// is empty.
	ScanSheet(ctx context.Context) (SheetImages, bool, error)

	// End releases the scanner session.
	End(ctx context.Context) error
}

// BatchScanner starts scanning sessions on a physical or simulated scanner.
type BatchScanner interface {
	ScanBatch(ctx context.Context) (BatchControl, error)
}
