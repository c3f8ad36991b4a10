package ballot

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestInterpretationRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pi   PageInterpretation
	}{
		{"bmd", InterpretedBmdPage{
			BallotID: "abcdefg",
			Metadata: BallotMetadata{BallotStyleID: "1", PrecinctID: "6522"},
			Votes:    Votes{"mayor": {"alice"}},
		}},
		{"hmpb", InterpretedHmpbPage{
			Metadata: hmpbMetadata(1),
			MarkInfo: MarkInfo{
				Marks:      []BallotMark{{ContestID: "mayor", OptionID: "alice", Score: 0.93}},
				BallotSize: BallotSize{Width: 850, Height: 1100},
			},
			AdjudicationInfo: AdjudicationInfo{
				RequiresAdjudication: true,
				EnabledReasons:       []AdjudicationReason{AdjudicationReasonOvervote},
				EnabledReasonInfos: []AdjudicationReasonInfo{
					{Type: AdjudicationReasonOvervote, ContestID: "mayor", OptionIDs: []string{"alice", "bob"}, Expected: 1},
				},
			},
			Votes: Votes{"mayor": {"alice"}},
		}},
		{"uninterpreted hmpb", UninterpretedHmpbPage{Metadata: hmpbMetadata(2)}},
		{"unreadable", UnreadablePage{Reason: "no qr code"}},
		{"blank", BlankPage{}},
		{"invalid test mode", InvalidTestModePage{Metadata: hmpbMetadata(1)}},
		{"invalid precinct", InvalidPrecinctPage{Metadata: hmpbMetadata(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalInterpretation(tt.pi)
			if err != nil {
				t.Fatalf("MarshalInterpretation() error = %v", err)
			}

			var tag struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &tag); err != nil {
				t.Fatalf("unmarshal tag: %v", err)
			}
			if tag.Type != tt.pi.InterpretationType() {
				t.Fatalf("tag = %s, want %s", tag.Type, tt.pi.InterpretationType())
			}

			got, err := UnmarshalInterpretation(data)
			if err != nil {
				t.Fatalf("UnmarshalInterpretation() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.pi) {
				t.Fatalf("UnmarshalInterpretation() = %#v, want %#v", got, tt.pi)
			}
		})
	}
}

func TestUnmarshalInterpretationUnknownType(t *testing.T) {
	_, err := UnmarshalInterpretation([]byte(`{"type":"SomethingElse"}`))
	if err == nil || !strings.Contains(err.Error(), "SomethingElse") {
		t.Fatalf("UnmarshalInterpretation() error = %v, want unknown type error", err)
	}
}

func TestInterpretationFieldInDocument(t *testing.T) {
	type doc struct {
		Interpretation InterpretationField `json:"interpretation"`
	}

	data, err := json.Marshal(doc{Interpretation: InterpretationField{UnreadablePage{Reason: "torn"}}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded doc
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	page, ok := decoded.Interpretation.PageInterpretation.(UnreadablePage)
	if !ok {
		t.Fatalf("decoded interpretation = %T", decoded.Interpretation.PageInterpretation)
	}
	if page.Reason != "torn" {
		t.Fatalf("reason = %s, want torn", page.Reason)
	}
}
