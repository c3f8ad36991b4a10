package ballot

import "testing"

func TestValidateHmpbSheetAcceptsEitherOrder(t *testing.T) {
	if err := ValidateHmpbSheet(hmpbMetadata(1), hmpbMetadata(2)); err != nil {
		t.Fatalf("ValidateHmpbSheet(1, 2) error = %v", err)
	}
	if err := ValidateHmpbSheet(hmpbMetadata(2), hmpbMetadata(1)); err != nil {
		t.Fatalf("ValidateHmpbSheet(2, 1) error = %v", err)
	}
}

func TestHmpbSheetMetadata(t *testing.T) {
	front := InterpretedHmpbPage{Metadata: hmpbMetadata(1)}
	back := UninterpretedHmpbPage{Metadata: hmpbMetadata(2)}

	frontMeta, backMeta, ok := HmpbSheetMetadata(front, back)
	if !ok {
		t.Fatal("HmpbSheetMetadata() ok = false for hmpb pair")
	}
	if frontMeta.PageNumber != 1 || backMeta.PageNumber != 2 {
		t.Fatalf("HmpbSheetMetadata() = %d, %d", frontMeta.PageNumber, backMeta.PageNumber)
	}

	if _, _, ok := HmpbSheetMetadata(front, BlankPage{}); ok {
		t.Fatal("HmpbSheetMetadata() ok = true with a blank mate")
	}
	if _, _, ok := HmpbSheetMetadata(front, InterpretedBmdPage{}); ok {
		t.Fatal("HmpbSheetMetadata() ok = true with a bmd mate")
	}
}

func TestPageMetadataOf(t *testing.T) {
	bmd := InterpretedBmdPage{Metadata: BallotMetadata{BallotStyleID: "1", PrecinctID: "6522"}}
	metadata, ok := PageMetadataOf(bmd)
	if !ok || metadata.PageNumber != 0 || metadata.PrecinctID != "6522" {
		t.Fatalf("PageMetadataOf(bmd) = %+v, %v", metadata, ok)
	}

	withMetadata := []PageInterpretation{
		InterpretedHmpbPage{Metadata: hmpbMetadata(1)},
		UninterpretedHmpbPage{Metadata: hmpbMetadata(1)},
		InvalidTestModePage{Metadata: hmpbMetadata(1)},
		InvalidPrecinctPage{Metadata: hmpbMetadata(1)},
	}
	for _, pi := range withMetadata {
		metadata, ok := PageMetadataOf(pi)
		if !ok || metadata.PageNumber != 1 {
			t.Fatalf("PageMetadataOf(%s) = %+v, %v", pi.InterpretationType(), metadata, ok)
		}
	}

	for _, pi := range []PageInterpretation{BlankPage{}, UnreadablePage{}} {
		if _, ok := PageMetadataOf(pi); ok {
			t.Fatalf("PageMetadataOf(%s) ok = true", pi.InterpretationType())
		}
	}
}
