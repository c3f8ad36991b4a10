package ballot

// Castability says whether a scanned sheet can become a cast vote record and
// whether a human has to look at it first.
type Castability string

const (
	CastableWithoutReview Castability = "CastableWithoutReview"
	CastableWithReview    Castability = "CastableWithReview"
	Uncastable            Castability = "Uncastable"
)

// ClassifySheet determines the castability of a two-page sheet.
//
// A machine-printed ballot front with a blank back casts without review since
// its votes come straight from the QR payload. A fully interpreted hand-marked
// pair casts, with review when either page flagged adjudication. Anything else
// cannot be cast as scanned.
func ClassifySheet(front, back PageInterpretation) Castability {
	if bmd, blank := splitBmdSheet(front, back); bmd != nil && blank {
		return CastableWithoutReview
	}

	frontHmpb, frontOK := front.(InterpretedHmpbPage)
	backHmpb, backOK := back.(InterpretedHmpbPage)
	if frontOK && backOK {
		if frontHmpb.AdjudicationInfo.RequiresAdjudication || backHmpb.AdjudicationInfo.RequiresAdjudication {
			return CastableWithReview
		}
		return CastableWithoutReview
	}

	return Uncastable
}

// splitBmdSheet recognizes a machine-printed ballot paired with a blank page,
// in either orientation.
func splitBmdSheet(front, back PageInterpretation) (*InterpretedBmdPage, bool) {
	if bmd, ok := front.(InterpretedBmdPage); ok {
		_, blank := back.(BlankPage)
		return &bmd, blank
	}
	if bmd, ok := back.(InterpretedBmdPage); ok {
		_, blank := front.(BlankPage)
		return &bmd, blank
	}
	return nil, false
}
