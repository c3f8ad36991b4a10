package ballot

import (
	"encoding/json"
	"fmt"
)

// PageInterpretation is the result of interpreting one scanned page. Exactly
// one concrete variant holds for any page; the set of variants is closed.
type PageInterpretation interface {
	// InterpretationType is the wire tag for this variant.
	InterpretationType() string

	sealedInterpretation()
}

// InterpretedBmdPage is a machine-printed ballot whose votes were decoded
// directly from its QR payload.
type InterpretedBmdPage struct {
	BallotID string         `json:"ballotId"`
	Metadata BallotMetadata `json:"metadata"`
	Votes    Votes          `json:"votes"`
}

// InterpretedHmpbPage is a hand-marked page that was fully mark-scored.
type InterpretedHmpbPage struct {
	BallotID         string           `json:"ballotId,omitempty"`
	Metadata         PageMetadata     `json:"metadata"`
	MarkInfo         MarkInfo         `json:"markInfo"`
	AdjudicationInfo AdjudicationInfo `json:"adjudicationInfo"`
	Votes            Votes            `json:"votes"`
}

// UninterpretedHmpbPage is a hand-marked page whose QR decode succeeded but
// whose mark scoring failed; only metadata is available.
type UninterpretedHmpbPage struct {
	Metadata PageMetadata `json:"metadata"`
}

// UnreadablePage carries no usable data.
type UnreadablePage struct {
	Reason string `json:"reason,omitempty"`
}

// BlankPage is a page with no detectable content.
type BlankPage struct{}

// InvalidTestModePage is a ballot whose test-mode flag disagrees with the
// scanner's configured mode.
type InvalidTestModePage struct {
	Metadata PageMetadata `json:"metadata"`
}

// InvalidPrecinctPage is a ballot for a precinct other than the one the
// scanner is configured for.
type InvalidPrecinctPage struct {
	Metadata PageMetadata `json:"metadata"`
}

func (InterpretedBmdPage) InterpretationType() string    { return "InterpretedBmdPage" }
func (InterpretedHmpbPage) InterpretationType() string   { return "InterpretedHmpbPage" }
func (UninterpretedHmpbPage) InterpretationType() string { return "UninterpretedHmpbPage" }
func (UnreadablePage) InterpretationType() string        { return "UnreadablePage" }
func (BlankPage) InterpretationType() string             { return "BlankPage" }
func (InvalidTestModePage) InterpretationType() string   { return "InvalidTestModePage" }
func (InvalidPrecinctPage) InterpretationType() string   { return "InvalidPrecinctPage" }

func (InterpretedBmdPage) sealedInterpretation()    {}
func (InterpretedHmpbPage) sealedInterpretation()   {}
func (UninterpretedHmpbPage) sealedInterpretation() {}
func (UnreadablePage) sealedInterpretation()        {}
func (BlankPage) sealedInterpretation()             {}
func (InvalidTestModePage) sealedInterpretation()   {}
func (InvalidPrecinctPage) sealedInterpretation()   {}

type taggedInterpretation struct {
	Type string `json:"type"`
}

// MarshalInterpretation serializes a page interpretation as a tagged JSON
// object, e.g. {"type":"BlankPage"}.
func MarshalInterpretation(pi PageInterpretation) ([]byte, error) {
	if pi == nil {
		return nil, fmt.Errorf("page interpretation is required")
	}

	switch v := pi.(type) {
	case InterpretedBmdPage:
		return json.Marshal(struct {
			Type string `json:"type"`
			InterpretedBmdPage
		}{v.InterpretationType(), v})
	case InterpretedHmpbPage:
		return json.Marshal(struct {
			Type string `json:"type"`
			InterpretedHmpbPage
		}{v.InterpretationType(), v})
	case UninterpretedHmpbPage:
		return json.Marshal(struct {
			Type string `json:"type"`
			UninterpretedHmpbPage
		}{v.InterpretationType(), v})
	case UnreadablePage:
		return json.Marshal(struct {
			Type string `json:"type"`
			UnreadablePage
		}{v.InterpretationType(), v})
	case BlankPage:
		return json.Marshal(struct {
			Type string `json:"type"`
			BlankPage
		}{v.InterpretationType(), v})
	case InvalidTestModePage:
		return json.Marshal(struct {
			Type string `json:"type"`
			InvalidTestModePage
		}{v.InterpretationType(), v})
	case InvalidPrecinctPage:
		return json.Marshal(struct {
			Type string `json:"type"`
			InvalidPrecinctPage
		}{v.InterpretationType(), v})
	default:
		return nil, fmt.Errorf("unknown page interpretation type %T", pi)
	}
}

// UnmarshalInterpretation parses a tagged JSON page interpretation.
func UnmarshalInterpretation(data []byte) (PageInterpretation, error) {
	var tag taggedInterpretation
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("parse interpretation tag: %w", err)
	}

	switch tag.Type {
	case "InterpretedBmdPage":
		var v InterpretedBmdPage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "InterpretedHmpbPage":
		var v InterpretedHmpbPage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "UninterpretedHmpbPage":
		var v UninterpretedHmpbPage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "UnreadablePage":
		var v UnreadablePage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "BlankPage":
		return BlankPage{}, nil
	case "InvalidTestModePage":
		var v InvalidTestModePage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "InvalidPrecinctPage":
		var v InvalidPrecinctPage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown page interpretation type %q", tag.Type)
	}
}

// InterpretationField embeds a page interpretation in a larger JSON document.
type InterpretationField struct {
	PageInterpretation
}

func (f InterpretationField) MarshalJSON() ([]byte, error) {
	return MarshalInterpretation(f.PageInterpretation)
}

func (f *InterpretationField) UnmarshalJSON(data []byte) error {
	pi, err := UnmarshalInterpretation(data)
	if err != nil {
		return err
	}
	f.PageInterpretation = pi
	return nil
}
