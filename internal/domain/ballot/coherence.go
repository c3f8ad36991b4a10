package ballot

import "fmt"

// ValidateHmpbSheet checks that the two pages of a hand-marked sheet belong
// together. Pages must have consecutive page numbers in either order and agree
// on ballot style and precinct.
func ValidateHmpbSheet(front, back PageMetadata) error {
	if front.PageNumber+1 != back.PageNumber && back.PageNumber+1 != front.PageNumber {
		return fmt.Errorf(
			"expected a sheet to have consecutive page numbers, but got front=%d back=%d",
			front.PageNumber, back.PageNumber,
		)
	}
	if front.BallotStyleID != back.BallotStyleID {
		return fmt.Errorf(
			"expected a sheet to have the same ballot style, but got front=%s back=%s",
			front.BallotStyleID, back.BallotStyleID,
		)
	}
	if front.PrecinctID != back.PrecinctID {
		return fmt.Errorf(
			"expected a sheet to have the same precinct, but got front=%s back=%s",
			front.PrecinctID, back.PrecinctID,
		)
	}
	return nil
}

// HmpbSheetMetadata extracts the hand-marked page metadata from both sides of
// a sheet, reporting false unless both sides carry it.
func HmpbSheetMetadata(front, back PageInterpretation) (PageMetadata, PageMetadata, bool) {
	frontMeta, frontOK := hmpbMetadataOf(front)
	backMeta, backOK := hmpbMetadataOf(back)
	return frontMeta, backMeta, frontOK && backOK
}

func hmpbMetadataOf(pi PageInterpretation) (PageMetadata, bool) {
	switch v := pi.(type) {
	case InterpretedHmpbPage:
		return v.Metadata, true
	case UninterpretedHmpbPage:
		return v.Metadata, true
	default:
		return PageMetadata{}, false
	}
}

// PageMetadataOf extracts ballot page metadata from any interpretation that
// carries it. Machine-printed pages report page number zero.
func PageMetadataOf(pi PageInterpretation) (PageMetadata, bool) {
	switch v := pi.(type) {
	case InterpretedBmdPage:
		return PageMetadata{BallotMetadata: v.Metadata}, true
	case InterpretedHmpbPage:
		return v.Metadata, true
	case UninterpretedHmpbPage:
		return v.Metadata, true
	case InvalidTestModePage:
		return v.Metadata, true
	case InvalidPrecinctPage:
		return v.Metadata, true
	default:
		return PageMetadata{}, false
	}
}
