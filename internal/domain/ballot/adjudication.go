package ballot

import (
	"fmt"
	"strings"
)

// AdjudicationReason names a condition that can send a ballot to human review.
type AdjudicationReason string

const (
	AdjudicationReasonUninterpretableBallot AdjudicationReason = "UninterpretableBallot"
	AdjudicationReasonMarginalMark          AdjudicationReason = "MarginalMark"
	AdjudicationReasonOvervote              AdjudicationReason = "Overvote"
	AdjudicationReasonUndervote             AdjudicationReason = "Undervote"
	AdjudicationReasonWriteIn               AdjudicationReason = "WriteIn"
	AdjudicationReasonBlankBallot           AdjudicationReason = "BlankBallot"
)

// AdjudicationReasonInfo is one concrete occurrence of an adjudication reason.
// ContestID and OptionID are set for per-option reasons, OptionIDs and
// Expected for undervotes and overvotes; ballot-level reasons carry only Type.
type AdjudicationReasonInfo struct {
	Type      AdjudicationReason `json:"type"`
	ContestID string             `json:"contestId,omitempty"`
	OptionID  string             `json:"optionId,omitempty"`
	OptionIDs []string           `json:"optionIds,omitempty"`
	Expected  int                `json:"expected,omitempty"`
}

// OptionMarkStatusFunc reports the effective mark status of one option.
type OptionMarkStatusFunc func(contestID, optionID string) MarkStatus

// BallotAdjudicationReasons enumerates every adjudication reason present on a
// ballot page. A nil contest list means the page itself could not be
// interpreted. An empty list means there is nothing to adjudicate. Otherwise
// reasons are emitted contest by contest in option order, with a trailing
// BlankBallot reason when no contest has any marked option.
func BallotAdjudicationReasons(contests []Contest, optionMarkStatus OptionMarkStatusFunc) []AdjudicationReasonInfo {
	if contests == nil {
		return []AdjudicationReasonInfo{{Type: AdjudicationReasonUninterpretableBallot}}
	}

	var reasons []AdjudicationReasonInfo
	isBlankBallot := true
	for _, contest := range contests {
		var selected []string
		for _, optionID := range contest.OptionIDs() {
			switch optionMarkStatus(contest.ID, optionID) {
			case MarkStatusMarginal:
				reasons = append(reasons, AdjudicationReasonInfo{
					Type:      AdjudicationReasonMarginalMark,
					ContestID: contest.ID,
					OptionID:  optionID,
				})
			case MarkStatusMarked:
				selected = append(selected, optionID)
				isBlankBallot = false
				if IsWriteInOption(optionID) {
					reasons = append(reasons, AdjudicationReasonInfo{
						Type:      AdjudicationReasonWriteIn,
						ContestID: contest.ID,
						OptionID:  optionID,
					})
				}
			}
		}

		expected := contest.ExpectedSelections()
		if len(selected) < expected {
			reasons = append(reasons, AdjudicationReasonInfo{
				Type:      AdjudicationReasonUndervote,
				ContestID: contest.ID,
				OptionIDs: selected,
				Expected:  expected,
			})
		} else if len(selected) > expected {
			reasons = append(reasons, AdjudicationReasonInfo{
				Type:      AdjudicationReasonOvervote,
				ContestID: contest.ID,
				OptionIDs: selected,
				Expected:  expected,
			})
		}
	}

	if isBlankBallot && len(contests) > 0 {
		reasons = append(reasons, AdjudicationReasonInfo{Type: AdjudicationReasonBlankBallot})
	}
	return reasons
}

// SplitAdjudicationReasons partitions reason occurrences into those matching
// the enabled reason set and those present but not enabled.
func SplitAdjudicationReasons(infos []AdjudicationReasonInfo, enabled []AdjudicationReason) (enabledInfos, ignoredInfos []AdjudicationReasonInfo) {
	enabledSet := make(map[AdjudicationReason]struct{}, len(enabled))
	for _, reason := range enabled {
		enabledSet[reason] = struct{}{}
	}

	for _, info := range infos {
		if _, ok := enabledSet[info.Type]; ok {
			enabledInfos = append(enabledInfos, info)
		} else {
			ignoredInfos = append(ignoredInfos, info)
		}
	}
	return enabledInfos, ignoredInfos
}

// Description renders a reason occurrence as a sentence for review screens
// and logs.
func (info AdjudicationReasonInfo) Description() string {
	switch info.Type {
	case AdjudicationReasonUninterpretableBallot:
		return "The ballot could not be interpreted at all, possibly due to a bad scan."
	case AdjudicationReasonMarginalMark:
		return fmt.Sprintf("The mark for %q in contest %q is marginal.", info.OptionID, info.ContestID)
	case AdjudicationReasonWriteIn:
		return fmt.Sprintf("Contest %q has a write-in vote for %q.", info.ContestID, info.OptionID)
	case AdjudicationReasonUndervote:
		if len(info.OptionIDs) == 0 {
			return fmt.Sprintf("Contest %q is undervoted, expected %d but got none.", info.ContestID, info.Expected)
		}
		return fmt.Sprintf(
			"Contest %q is undervoted, expected %d but got %d: %s.",
			info.ContestID, info.Expected, len(info.OptionIDs), strings.Join(info.OptionIDs, ", "),
		)
	case AdjudicationReasonOvervote:
		return fmt.Sprintf(
			"Contest %q is overvoted, expected %d but got %d: %s.",
			info.ContestID, info.Expected, len(info.OptionIDs), strings.Join(info.OptionIDs, ", "),
		)
	case AdjudicationReasonBlankBallot:
		return "The ballot has no visible marks at all."
	default:
		return fmt.Sprintf("Unknown adjudication reason %q.", info.Type)
	}
}
