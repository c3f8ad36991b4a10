package ballot

import (
	"reflect"
	"testing"
)

func testElection() *Election {
	return &Election{
		Title: "General Election",
		BallotStyles: []BallotStyle{
			{ID: "1", ContestIDs: []string{"mayor", "council", "measure-a"}},
		},
		Precincts: []Precinct{
			{ID: "6522", Name: "District 5"},
			{ID: "6523", Name: "District 6"},
		},
		Contests: []Contest{
			{
				ID:    "mayor",
				Type:  ContestTypeCandidate,
				Title: "Mayor",
				Seats: 1,
				Candidates: []Candidate{
					{ID: "alice", Name: "Alice"},
					{ID: "bob", Name: "Bob"},
				},
			},
			{
				ID:            "council",
				Type:          ContestTypeCandidate,
				Title:         "City Council",
				Seats:         2,
				AllowWriteIns: true,
				Candidates: []Candidate{
					{ID: "carol", Name: "Carol"},
					{ID: "dave", Name: "Dave"},
					{ID: "erin", Name: "Erin"},
				},
			},
			{ID: "measure-a", Type: ContestTypeYesNo, Title: "Measure A"},
		},
	}
}

func hmpbMetadata(pageNumber int) PageMetadata {
	return PageMetadata{
		BallotMetadata: BallotMetadata{
			ElectionHash:  "abc123",
			BallotType:    BallotTypeStandard,
			BallotStyleID: "1",
			PrecinctID:    "6522",
			Locales:       Locales{Primary: "en-US"},
		},
		PageNumber: pageNumber,
	}
}

func TestBuildCastVoteRecordFromBmdBallot(t *testing.T) {
	election := testElection()

	for _, mate := range []PageInterpretation{BlankPage{}, UnreadablePage{}} {
		bmd := InterpretedBmdPage{
			BallotID: "abcdefg",
			Metadata: BallotMetadata{
				BallotType:    BallotTypeStandard,
				BallotStyleID: "1",
				PrecinctID:    "6522",
				Locales:       Locales{Primary: "en-US"},
			},
			Votes: Votes{
				"mayor":   {"alice"},
				"council": {"write-in__PIKACHU"},
			},
		}

		cvr, err := BuildCastVoteRecord(
			"sheetid", "1234", "Batch 1", "abcdefg", "000", election,
			PageWithAdjudication{Interpretation: bmd},
			PageWithAdjudication{Interpretation: mate},
		)
		if err != nil {
			t.Fatalf("BuildCastVoteRecord() error = %v", err)
		}

		want := CastVoteRecord{
			"mayor":          []string{"alice"},
			"council":        []string{"write-in__PIKACHU"},
			"measure-a":      []string{},
			"_ballotId":      "abcdefg",
			"_ballotStyleId": "1",
			"_ballotType":    "standard",
			"_batchId":       "1234",
			"_batchLabel":    "Batch 1",
			"_precinctId":    "6522",
			"_scannerId":     "000",
			"_testBallot":    false,
			"_locales":       Locales{Primary: "en-US"},
		}
		if !reflect.DeepEqual(cvr, want) {
			t.Fatalf("BuildCastVoteRecord() = %#v, want %#v", cvr, want)
		}
	}
}

func TestBuildCastVoteRecordFromHmpbSheet(t *testing.T) {
	election := testElection()

	front := PageWithAdjudication{
		Interpretation: InterpretedHmpbPage{
			Metadata: hmpbMetadata(1),
			Votes:    Votes{"mayor": {"alice"}, "council": {"carol", "dave"}},
		},
		ContestIDs: []string{"mayor", "council"},
	}
	back := PageWithAdjudication{
		Interpretation: InterpretedHmpbPage{
			Metadata: hmpbMetadata(2),
			Votes:    Votes{"measure-a": {"yes"}},
		},
		ContestIDs: []string{"measure-a"},
	}

	cvr, err := BuildCastVoteRecord("sheetid", "1234", "Batch 1", "abcdefg", "000", election, front, back)
	if err != nil {
		t.Fatalf("BuildCastVoteRecord() error = %v", err)
	}

	if got := cvr["mayor"]; !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("mayor = %v", got)
	}
	if got := cvr["council"]; !reflect.DeepEqual(got, []string{"carol", "dave"}) {
		t.Fatalf("council = %v", got)
	}
	if got := cvr["measure-a"]; !reflect.DeepEqual(got, []string{"yes"}) {
		t.Fatalf("measure-a = %v", got)
	}
	if got := cvr["_pageNumbers"]; !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("_pageNumbers = %v", got)
	}
}

func TestBuildCastVoteRecordSortsPageNumbers(t *testing.T) {
	election := testElection()

	front := PageWithAdjudication{
		Interpretation: InterpretedHmpbPage{Metadata: hmpbMetadata(2), Votes: Votes{}},
		ContestIDs:     []string{"measure-a"},
	}
	back := PageWithAdjudication{
		Interpretation: InterpretedHmpbPage{Metadata: hmpbMetadata(1), Votes: Votes{}},
		ContestIDs:     []string{"mayor"},
	}

	cvr, err := BuildCastVoteRecord("sheetid", "1234", "Batch 1", "abcdefg", "000", election, front, back)
	if err != nil {
		t.Fatalf("BuildCastVoteRecord() error = %v", err)
	}
	if got := cvr["_pageNumbers"]; !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("_pageNumbers = %v", got)
	}
}

func TestBuildCastVoteRecordAppliesAdjudication(t *testing.T) {
	election := testElection()

	front := PageWithAdjudication{
		Interpretation: InterpretedHmpbPage{
			Metadata: hmpbMetadata(1),
			Votes:    Votes{"mayor": {"alice"}},
		},
		ContestIDs: []string{"mayor", "council"},
		Adjudication: MarksByContestID{
			"mayor":   {"alice": MarkStatusUnmarked, "bob": MarkStatusMarked},
			"council": {"carol": MarkStatusMarked},
		},
	}
	back := PageWithAdjudication{
		Interpretation: UninterpretedHmpbPage{Metadata: hmpbMetadata(2)},
		ContestIDs:     []string{"measure-a"},
		Adjudication:   MarksByContestID{"measure-a": {"no": MarkStatusMarked}},
	}

	cvr, err := BuildCastVoteRecord("sheetid", "1234", "Batch 1", "abcdefg", "000", election, front, back)
	if err != nil {
		t.Fatalf("BuildCastVoteRecord() error = %v", err)
	}

	if got := cvr["mayor"]; !reflect.DeepEqual(got, []string{"bob"}) {
		t.Fatalf("mayor = %v, want adjudicated mark to win", got)
	}
	if got := cvr["council"]; !reflect.DeepEqual(got, []string{"carol"}) {
		t.Fatalf("council = %v", got)
	}
	if got := cvr["measure-a"]; !reflect.DeepEqual(got, []string{"no"}) {
		t.Fatalf("measure-a = %v, want adjudicated vote on uninterpreted page", got)
	}
}

func TestBuildCastVoteRecordCoherenceErrors(t *testing.T) {
	election := testElection()

	metaWith := func(pageNumber int, styleID, precinctID string) PageMetadata {
		m := hmpbMetadata(pageNumber)
		m.BallotStyleID = styleID
		m.PrecinctID = precinctID
		return m
	}

	tests := []struct {
		name    string
		front   PageMetadata
		back    PageMetadata
		wantErr string
	}{
		{
			name:    "same page number",
			front:   metaWith(1, "1", "6522"),
			back:    metaWith(1, "1", "6522"),
			wantErr: "expected a sheet to have consecutive page numbers, but got front=1 back=1",
		},
		{
			name:    "non-consecutive pages",
			front:   metaWith(1, "1", "6522"),
			back:    metaWith(3, "1", "6522"),
			wantErr: "expected a sheet to have consecutive page numbers, but got front=1 back=3",
		},
		{
			name:    "different ballot styles",
			front:   metaWith(1, "1", "6522"),
			back:    metaWith(2, "2", "6522"),
			wantErr: "expected a sheet to have the same ballot style, but got front=1 back=2",
		},
		{
			name:    "different precincts",
			front:   metaWith(1, "1", "6522"),
			back:    metaWith(2, "1", "6523"),
			wantErr: "expected a sheet to have the same precinct, but got front=6522 back=6523",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCastVoteRecord(
				"sheetid", "1234", "Batch 1", "abcdefg", "000", election,
				PageWithAdjudication{Interpretation: InterpretedHmpbPage{Metadata: tt.front, Votes: Votes{}}},
				PageWithAdjudication{Interpretation: UninterpretedHmpbPage{Metadata: tt.back}},
			)
			if err == nil {
				t.Fatalf("BuildCastVoteRecord() error = nil, want %q", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("BuildCastVoteRecord() error = %q, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildCastVoteRecordSkipsUncastableSheets(t *testing.T) {
	election := testElection()

	tests := []struct {
		name        string
		front, back PageInterpretation
	}{
		{"blank pair", BlankPage{}, BlankPage{}},
		{"invalid test mode", InvalidTestModePage{Metadata: hmpbMetadata(1)}, BlankPage{}},
		{"invalid precinct", InvalidPrecinctPage{Metadata: hmpbMetadata(1)}, BlankPage{}},
		{"unreadable pair", UnreadablePage{}, UnreadablePage{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cvr, err := BuildCastVoteRecord(
				"sheetid", "1234", "Batch 1", "abcdefg", "000", election,
				PageWithAdjudication{Interpretation: tt.front},
				PageWithAdjudication{Interpretation: tt.back},
			)
			if err != nil {
				t.Fatalf("BuildCastVoteRecord() error = %v", err)
			}
			if cvr != nil {
				t.Fatalf("BuildCastVoteRecord() = %v, want nil", cvr)
			}
		})
	}
}

func TestBallotTypeFromCode(t *testing.T) {
	tests := []struct {
		code int
		want BallotType
	}{
		{0, BallotTypeStandard},
		{1, BallotTypeAbsentee},
		{2, BallotTypeProvisional},
	}
	for _, tt := range tests {
		got, err := BallotTypeFromCode(tt.code)
		if err != nil {
			t.Fatalf("BallotTypeFromCode(%d) error = %v", tt.code, err)
		}
		if got != tt.want {
			t.Fatalf("BallotTypeFromCode(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}

	if _, err := BallotTypeFromCode(-1); err == nil {
		t.Fatal("BallotTypeFromCode(-1) error = nil, want error")
	}
}
