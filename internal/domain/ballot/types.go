package ballot

// BallotType distinguishes how a ballot was issued to the voter.
type BallotType string

const (
	BallotTypeStandard    BallotType = "standard"
	BallotTypeAbsentee    BallotType = "absentee"
	BallotTypeProvisional BallotType = "provisional"
)

// Locales identifies the language(s) a ballot was rendered in.
type Locales struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

// BallotMetadata identifies a ballot independent of any particular page.
type BallotMetadata struct {
	ElectionHash  string     `json:"electionHash"`
	BallotType    BallotType `json:"ballotType"`
	BallotStyleID string     `json:"ballotStyleId"`
	PrecinctID    string     `json:"precinctId"`
	IsTestMode    bool       `json:"isTestMode"`
	Locales       Locales    `json:"locales"`
}

// PageMetadata identifies one page of a hand-marked paper ballot.
type PageMetadata struct {
	BallotMetadata
	PageNumber int `json:"pageNumber"`
}

// Votes maps contest id to the selected option ids for that contest.
// Option ids are candidate ids, "yes"/"no" for ballot measures, or
// write-in option ids.
type Votes map[string][]string

// MarkStatus is the scored or adjudicated state of a single ballot option.
type MarkStatus string

const (
	MarkStatusMarked          MarkStatus = "marked"
	MarkStatusUnmarked        MarkStatus = "unmarked"
	MarkStatusMarginal        MarkStatus = "marginal"
	MarkStatusUnmarkedWriteIn MarkStatus = "unmarkedWriteIn"
)

// MarksByContestID stores a human adjudication as a sparse diff on top of the
// machine score: only options whose status diverges from the machine score are
// present.
type MarksByContestID map[string]map[string]MarkStatus

// MarkStatusAt returns the adjudicated status for an option, or "" when the
// adjudication does not mention it.
func (m MarksByContestID) MarkStatusAt(contestID, optionID string) MarkStatus {
	if m == nil {
		return ""
	}
	options, ok := m[contestID]
	if !ok {
		return ""
	}
	return options[optionID]
}

// BallotMark is one scored mark position on a scanned page.
type BallotMark struct {
	ContestID string  `json:"contestId"`
	OptionID  string  `json:"optionId"`
	Score     float64 `json:"score"`
}

// BallotSize is the scanned page dimensions in pixels.
type BallotSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MarkInfo carries all scored marks for one page.
type MarkInfo struct {
	Marks      []BallotMark `json:"marks"`
	BallotSize BallotSize   `json:"ballotSize"`
}

// ContestIDs returns the distinct contest ids that have at least one scored
// mark, in first-seen order.
func (m MarkInfo) ContestIDs() []string {
	seen := make(map[string]struct{}, len(m.Marks))
	out := make([]string, 0, len(m.Marks))
	for _, mark := range m.Marks {
		if _, ok := seen[mark.ContestID]; ok {
			continue
		}
		seen[mark.ContestID] = struct{}{}
		out = append(out, mark.ContestID)
	}
	return out
}

// AdjudicationInfo summarizes why a page does or does not need human review.
type AdjudicationInfo struct {
	RequiresAdjudication bool                     `json:"requiresAdjudication"`
	EnabledReasons       []AdjudicationReason     `json:"enabledReasons"`
	EnabledReasonInfos   []AdjudicationReasonInfo `json:"enabledReasonInfos"`
	IgnoredReasonInfos   []AdjudicationReasonInfo `json:"ignoredReasonInfos,omitempty"`
}
