package ballot

import (
	"fmt"
	"sort"
)

// CastVoteRecord is the flat export form of one cast ballot: contest ids map
// to selected option ids, and underscore-prefixed keys carry ballot metadata.
type CastVoteRecord map[string]interface{}

// PageWithAdjudication is one side of a stored sheet as the CVR builder sees
// it: the machine interpretation, the contests laid out on the page, and any
// human adjudication recorded as a sparse mark-status overlay.
type PageWithAdjudication struct {
	Interpretation PageInterpretation
	ContestIDs     []string
	Adjudication   MarksByContestID
}

// BuildCastVoteRecord builds the cast vote record for a scanned sheet, or nil
// when the sheet holds no castable ballot. A machine-printed ballot paired
// with a blank or unreadable page uses the decoded votes directly and lists
// every contest of its ballot style. A hand-marked pair merges both pages'
// contests, applying adjudication on top of the machine score: an option
// counts as selected when the adjudication marks it, or when the machine
// scored it as a vote and the adjudication does not explicitly unmark it.
// Hand-marked sheets that fail coherence checks are an error.
func BuildCastVoteRecord(
	sheetID, batchID, batchLabel, ballotID, scannerID string,
	election *Election,
	front, back PageWithAdjudication,
) (CastVoteRecord, error) {
	if bmd, ok := bmdWithBlankMate(front.Interpretation, back.Interpretation); ok {
		return buildBmdCastVoteRecord(ballotID, batchID, batchLabel, scannerID, election, bmd)
	}

	frontMeta, backMeta, ok := HmpbSheetMetadata(front.Interpretation, back.Interpretation)
	if !ok {
		return nil, nil
	}
	if err := ValidateHmpbSheet(frontMeta, backMeta); err != nil {
		return nil, err
	}
	return buildHmpbCastVoteRecord(ballotID, batchID, batchLabel, scannerID, election, frontMeta, front, back)
}

func bmdWithBlankMate(front, back PageInterpretation) (InterpretedBmdPage, bool) {
	if bmd, ok := front.(InterpretedBmdPage); ok && isBlankMate(back) {
		return bmd, true
	}
	if bmd, ok := back.(InterpretedBmdPage); ok && isBlankMate(front) {
		return bmd, true
	}
	return InterpretedBmdPage{}, false
}

func isBlankMate(pi PageInterpretation) bool {
	switch pi.(type) {
	case BlankPage, UnreadablePage:
		return true
	default:
		return false
	}
}

func buildBmdCastVoteRecord(
	ballotID, batchID, batchLabel, scannerID string,
	election *Election,
	bmd InterpretedBmdPage,
) (CastVoteRecord, error) {
	contests, err := election.ContestsForBallotStyle(bmd.Metadata.BallotStyleID)
	if err != nil {
		return nil, err
	}

	cvr := newCastVoteRecord(ballotID, batchID, batchLabel, scannerID, bmd.Metadata)
	for _, contest := range contests {
		optionIDs := bmd.Votes[contest.ID]
		if optionIDs == nil {
			optionIDs = []string{}
		}
		cvr[contest.ID] = optionIDs
	}
	return cvr, nil
}

func buildHmpbCastVoteRecord(
	ballotID, batchID, batchLabel, scannerID string,
	election *Election,
	metadata PageMetadata,
	front, back PageWithAdjudication,
) (CastVoteRecord, error) {
	cvr := newCastVoteRecord(ballotID, batchID, batchLabel, scannerID, metadata.BallotMetadata)

	frontMeta, backMeta, _ := HmpbSheetMetadata(front.Interpretation, back.Interpretation)
	pageNumbers := []int{frontMeta.PageNumber, backMeta.PageNumber}
	sort.Ints(pageNumbers)
	cvr["_pageNumbers"] = pageNumbers

	for _, page := range []PageWithAdjudication{front, back} {
		for _, contest := range election.ContestsForIDs(page.ContestIDs) {
			cvr[contest.ID] = contestOptionIDs(contest, page)
		}
	}
	return cvr, nil
}

// contestOptionIDs resolves one contest's selections for a page. Adjudication
// wins over the machine score per option.
func contestOptionIDs(contest Contest, page PageWithAdjudication) []string {
	machineVotes := pageVotes(page.Interpretation)[contest.ID]
	machineSelected := make(map[string]struct{}, len(machineVotes))
	for _, optionID := range machineVotes {
		machineSelected[optionID] = struct{}{}
	}

	ballotOptions := contest.OptionIDs()
	onBallot := make(map[string]struct{}, len(ballotOptions))
	selected := []string{}
	for _, optionID := range ballotOptions {
		onBallot[optionID] = struct{}{}
		switch status := page.Adjudication.MarkStatusAt(contest.ID, optionID); {
		case status == MarkStatusMarked:
			selected = append(selected, optionID)
		case status == MarkStatusUnmarked:
			// explicitly unmarked by the adjudicator
		default:
			if _, ok := machineSelected[optionID]; ok {
				selected = append(selected, optionID)
			}
		}
	}

	// machine-printed write-ins are not ballot options
	for _, optionID := range machineVotes {
		if _, ok := onBallot[optionID]; ok {
			continue
		}
		if page.Adjudication.MarkStatusAt(contest.ID, optionID) != MarkStatusUnmarked {
			selected = append(selected, optionID)
		}
	}
	return selected
}

func pageVotes(pi PageInterpretation) Votes {
	switch v := pi.(type) {
	case InterpretedHmpbPage:
		return v.Votes
	case InterpretedBmdPage:
		return v.Votes
	default:
		return nil
	}
}

func newCastVoteRecord(ballotID, batchID, batchLabel, scannerID string, metadata BallotMetadata) CastVoteRecord {
	ballotType := metadata.BallotType
	if ballotType == "" {
		ballotType = BallotTypeStandard
	}
	return CastVoteRecord{
		"_ballotId":      ballotID,
		"_ballotStyleId": metadata.BallotStyleID,
		"_ballotType":    string(ballotType),
		"_batchId":       batchID,
		"_batchLabel":    batchLabel,
		"_precinctId":    metadata.PrecinctID,
		"_scannerId":     scannerID,
		"_testBallot":    metadata.IsTestMode,
		"_locales":       metadata.Locales,
	}
}

// BallotTypeFromCode maps the numeric ballot type code used in legacy QR
// payloads to its export name.
func BallotTypeFromCode(code int) (BallotType, error) {
	switch code {
	case 0:
		return BallotTypeStandard, nil
	case 1:
		return BallotTypeAbsentee, nil
	case 2:
		return BallotTypeProvisional, nil
	default:
		return "", fmt.Errorf("illegal ballot type code: %d", code)
	}
}
