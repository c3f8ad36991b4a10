package ballot

import "testing"

func TestClassifySheet(t *testing.T) {
	bmd := InterpretedBmdPage{Metadata: BallotMetadata{BallotStyleID: "1"}}
	cleanHmpb := InterpretedHmpbPage{Metadata: hmpbMetadata(1)}
	flaggedHmpb := InterpretedHmpbPage{
		Metadata:         hmpbMetadata(2),
		AdjudicationInfo: AdjudicationInfo{RequiresAdjudication: true},
	}

	tests := []struct {
		name        string
		front, back PageInterpretation
		want        Castability
	}{
		{"bmd with blank back", bmd, BlankPage{}, CastableWithoutReview},
		{"blank front with bmd back", BlankPage{}, bmd, CastableWithoutReview},
		{"clean hmpb pair", cleanHmpb, cleanHmpb, CastableWithoutReview},
		{"hmpb pair with flagged front", flaggedHmpb, cleanHmpb, CastableWithReview},
		{"hmpb pair with flagged back", cleanHmpb, flaggedHmpb, CastableWithReview},
		{"bmd with unreadable back", bmd, UnreadablePage{}, Uncastable},
		{"bmd pair", bmd, bmd, Uncastable},
		{"blank pair", BlankPage{}, BlankPage{}, Uncastable},
		{"hmpb with uninterpreted mate", cleanHmpb, UninterpretedHmpbPage{Metadata: hmpbMetadata(2)}, Uncastable},
		{"invalid test mode page", InvalidTestModePage{Metadata: hmpbMetadata(1)}, BlankPage{}, Uncastable},
		{"unreadable pair", UnreadablePage{}, UnreadablePage{}, Uncastable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySheet(tt.front, tt.back); got != tt.want {
				t.Fatalf("ClassifySheet() = %s, want %s", got, tt.want)
			}
		})
	}
}
