package ballot

import (
	"reflect"
	"testing"
)

func markStatuses(statuses map[string]MarkStatus) OptionMarkStatusFunc {
	return func(contestID, optionID string) MarkStatus {
		return statuses[contestID+"/"+optionID]
	}
}

func TestBallotAdjudicationReasonsUninterpretablePage(t *testing.T) {
	got := BallotAdjudicationReasons(nil, markStatuses(nil))
	want := []AdjudicationReasonInfo{{Type: AdjudicationReasonUninterpretableBallot}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BallotAdjudicationReasons(nil) = %+v, want %+v", got, want)
	}
}

func TestBallotAdjudicationReasonsEmptyContestList(t *testing.T) {
	// a present-but-empty list means the page has nothing to adjudicate;
	// only a nil list marks the page uninterpretable
	if got := BallotAdjudicationReasons([]Contest{}, markStatuses(nil)); len(got) != 0 {
		t.Fatalf("BallotAdjudicationReasons([]) = %+v, want none", got)
	}
}

func TestBallotAdjudicationReasonsBlankPage(t *testing.T) {
	contests := testElection().ContestsForIDs([]string{"mayor"})

	got := BallotAdjudicationReasons(contests, markStatuses(nil))
	want := []AdjudicationReasonInfo{
		{Type: AdjudicationReasonUndervote, ContestID: "mayor", Expected: 1},
		{Type: AdjudicationReasonBlankBallot},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BallotAdjudicationReasons() = %+v, want %+v", got, want)
	}
}

func TestBallotAdjudicationReasonsCleanVote(t *testing.T) {
	contests := testElection().ContestsForIDs([]string{"mayor"})

	got := BallotAdjudicationReasons(contests, markStatuses(map[string]MarkStatus{
		"mayor/alice": MarkStatusMarked,
	}))
	if len(got) != 0 {
		t.Fatalf("BallotAdjudicationReasons() = %+v, want none", got)
	}
}

func TestBallotAdjudicationReasonsOvervote(t *testing.T) {
	contests := testElection().ContestsForIDs([]string{"mayor"})

	got := BallotAdjudicationReasons(contests, markStatuses(map[string]MarkStatus{
		"mayor/alice": MarkStatusMarked,
		"mayor/bob":   MarkStatusMarked,
	}))
	want := []AdjudicationReasonInfo{
		{Type: AdjudicationReasonOvervote, ContestID: "mayor", OptionIDs: []string{"alice", "bob"}, Expected: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BallotAdjudicationReasons() = %+v, want %+v", got, want)
	}
}

func TestBallotAdjudicationReasonsMarginalMark(t *testing.T) {
	contests := testElection().ContestsForIDs([]string{"mayor"})

	got := BallotAdjudicationReasons(contests, markStatuses(map[string]MarkStatus{
		"mayor/alice": MarkStatusMarginal,
		"mayor/bob":   MarkStatusMarked,
	}))
	want := []AdjudicationReasonInfo{
		{Type: AdjudicationReasonMarginalMark, ContestID: "mayor", OptionID: "alice"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BallotAdjudicationReasons() = %+v, want %+v", got, want)
	}
}

func TestBallotAdjudicationReasonsWriteIn(t *testing.T) {
	contests := testElection().ContestsForIDs([]string{"council"})

	got := BallotAdjudicationReasons(contests, markStatuses(map[string]MarkStatus{
		"council/carol":        MarkStatusMarked,
		"council/__write-in-0": MarkStatusMarked,
	}))
	want := []AdjudicationReasonInfo{
		{Type: AdjudicationReasonWriteIn, ContestID: "council", OptionID: "__write-in-0"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BallotAdjudicationReasons() = %+v, want %+v", got, want)
	}
}

func TestBallotAdjudicationReasonsUndervote(t *testing.T) {
	contests := testElection().ContestsForIDs([]string{"council", "measure-a"})

	got := BallotAdjudicationReasons(contests, markStatuses(map[string]MarkStatus{
		"council/carol": MarkStatusMarked,
		"measure-a/yes": MarkStatusMarked,
	}))
	want := []AdjudicationReasonInfo{
		{Type: AdjudicationReasonUndervote, ContestID: "council", OptionIDs: []string{"carol"}, Expected: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BallotAdjudicationReasons() = %+v, want %+v", got, want)
	}
}

func TestSplitAdjudicationReasons(t *testing.T) {
	infos := []AdjudicationReasonInfo{
		{Type: AdjudicationReasonMarginalMark, ContestID: "mayor", OptionID: "alice"},
		{Type: AdjudicationReasonWriteIn, ContestID: "council", OptionID: "__write-in-0"},
		{Type: AdjudicationReasonBlankBallot},
	}

	enabled, ignored := SplitAdjudicationReasons(infos, []AdjudicationReason{
		AdjudicationReasonWriteIn,
		AdjudicationReasonBlankBallot,
	})

	if len(enabled) != 2 || enabled[0].Type != AdjudicationReasonWriteIn || enabled[1].Type != AdjudicationReasonBlankBallot {
		t.Fatalf("SplitAdjudicationReasons() enabled = %+v", enabled)
	}
	if len(ignored) != 1 || ignored[0].Type != AdjudicationReasonMarginalMark {
		t.Fatalf("SplitAdjudicationReasons() ignored = %+v", ignored)
	}
}

func TestAdjudicationReasonDescription(t *testing.T) {
	tests := []struct {
		info AdjudicationReasonInfo
		want string
	}{
		{
			AdjudicationReasonInfo{Type: AdjudicationReasonUninterpretableBallot},
			"The ballot could not be interpreted at all, possibly due to a bad scan.",
		},
		{
			AdjudicationReasonInfo{Type: AdjudicationReasonMarginalMark, ContestID: "mayor", OptionID: "alice"},
			`The mark for "alice" in contest "mayor" is marginal.`,
		},
		{
			AdjudicationReasonInfo{Type: AdjudicationReasonUndervote, ContestID: "mayor", Expected: 1},
			`Contest "mayor" is undervoted, expected 1 but got none.`,
		},
		{
			AdjudicationReasonInfo{Type: AdjudicationReasonOvervote, ContestID: "mayor", OptionIDs: []string{"alice", "bob"}, Expected: 1},
			`Contest "mayor" is overvoted, expected 1 but got 2: alice, bob.`,
		},
		{
			AdjudicationReasonInfo{Type: AdjudicationReasonBlankBallot},
			"The ballot has no visible marks at all.",
		},
	}
	for _, tt := range tests {
		if got := tt.info.Description(); got != tt.want {
			t.Fatalf("Description() = %q, want %q", got, tt.want)
		}
	}
}
