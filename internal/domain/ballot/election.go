package ballot

import (
	"fmt"
	"strings"
)

// ContestType distinguishes candidate races from ballot measures.
type ContestType string

const (
	ContestTypeCandidate ContestType = "candidate"
	ContestTypeYesNo     ContestType = "yesno"
)

type Candidate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	PartyID string `json:"partyId,omitempty"`
}

type Contest struct {
	ID            string      `json:"id"`
	Type          ContestType `json:"type"`
	Title         string      `json:"title"`
	Seats         int         `json:"seats,omitempty"`
	AllowWriteIns bool        `json:"allowWriteIns,omitempty"`
	Candidates    []Candidate `json:"candidates,omitempty"`
}

// ExpectedSelections is the number of selections a voter is expected to make:
// one for a ballot measure, the number of seats for a candidate race. A race
// that does not state its seats is a single-seat race.
func (c Contest) ExpectedSelections() int {
	if c.Type == ContestTypeYesNo || c.Seats == 0 {
		return 1
	}
	return c.Seats
}

// OptionIDs enumerates every selectable option on the ballot for this contest,
// including synthetic write-in option ids when write-ins are allowed.
func (c Contest) OptionIDs() []string {
	if c.Type == ContestTypeYesNo {
		return []string{"yes", "no"}
	}

	ids := make([]string, 0, len(c.Candidates)+c.ExpectedSelections())
	for _, candidate := range c.Candidates {
		ids = append(ids, candidate.ID)
	}
	if c.AllowWriteIns {
		for i := 0; i < c.ExpectedSelections(); i++ {
			ids = append(ids, WriteInOptionID(i))
		}
	}
	return ids
}

// WriteInOptionID is the synthetic option id for the nth write-in slot on a
// hand-marked ballot.
func WriteInOptionID(n int) string {
	return fmt.Sprintf("__write-in-%d", n)
}

// IsWriteInOption reports whether an option id denotes a write-in, either a
// hand-marked slot ("__write-in-0") or a machine-printed write-in
// ("write-in__NAME").
func IsWriteInOption(optionID string) bool {
	return strings.HasPrefix(optionID, "__write-in-") || strings.HasPrefix(optionID, "write-in__")
}

type BallotStyle struct {
	ID         string   `json:"id"`
	ContestIDs []string `json:"contestIds"`
	PartyID    string   `json:"partyId,omitempty"`
}

type Election struct {
	Title        string        `json:"title"`
	County       string        `json:"county,omitempty"`
	Date         string        `json:"date,omitempty"`
	BallotStyles []BallotStyle `json:"ballotStyles"`
	Precincts    []Precinct    `json:"precincts"`
	Contests     []Contest     `json:"contests"`
}

type Precinct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Contest looks up a contest by id.
func (e *Election) Contest(id string) (Contest, bool) {
	for _, contest := range e.Contests {
		if contest.ID == id {
			return contest, true
		}
	}
	return Contest{}, false
}

// BallotStyle looks up a ballot style by id.
func (e *Election) BallotStyle(id string) (BallotStyle, bool) {
	for _, style := range e.BallotStyles {
		if style.ID == id {
			return style, true
		}
	}
	return BallotStyle{}, false
}

// ContestsForBallotStyle returns the contests on a ballot style in election
// definition order.
func (e *Election) ContestsForBallotStyle(styleID string) ([]Contest, error) {
	style, ok := e.BallotStyle(styleID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBallotStyle, styleID)
	}

	wanted := make(map[string]struct{}, len(style.ContestIDs))
	for _, id := range style.ContestIDs {
		wanted[id] = struct{}{}
	}

	contests := make([]Contest, 0, len(style.ContestIDs))
	for _, contest := range e.Contests {
		if _, ok := wanted[contest.ID]; ok {
			contests = append(contests, contest)
		}
	}
	return contests, nil
}

// ContestsForIDs returns the named contests in election definition order,
// skipping ids the election does not define.
func (e *Election) ContestsForIDs(ids []string) []Contest {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	contests := make([]Contest, 0, len(ids))
	for _, contest := range e.Contests {
		if _, ok := wanted[contest.ID]; ok {
			contests = append(contests, contest)
		}
	}
	return contests
}

// ElectionDefinition pairs a parsed election with the hash of its canonical
// serialized form, used to match scanned ballots to the configured election.
type ElectionDefinition struct {
	Election     Election `json:"election"`
	ElectionHash string   `json:"electionHash"`
}
