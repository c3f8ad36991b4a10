package ballot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QR payload prefixes. Hand-marked ballots encode page metadata; machine
// printed ballots encode the full ballot including votes.
const (
	hmpbPayloadPrefix = "VPH1."
	bmdPayloadPrefix  = "VPB1."
)

// QrcodePosition is where on the page the QR code was found.
type QrcodePosition string

const (
	QrcodePositionTop    QrcodePosition = "top"
	QrcodePositionBottom QrcodePosition = "bottom"
)

// Qrcode is a detected QR code on a scanned page.
type Qrcode struct {
	Data     []byte         `json:"data"`
	Position QrcodePosition `json:"position"`
}

// BmdPayload is the QR payload of a machine-printed ballot.
type BmdPayload struct {
	BallotID string         `json:"ballotId"`
	Metadata BallotMetadata `json:"metadata"`
	Votes    Votes          `json:"votes"`
}

// EncodeHmpbMetadata serializes hand-marked page metadata into a QR payload.
func EncodeHmpbMetadata(metadata PageMetadata) ([]byte, error) {
	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode hmpb metadata: %w", err)
	}
	return append([]byte(hmpbPayloadPrefix), body...), nil
}

// DecodeHmpbMetadata parses a QR payload as hand-marked page metadata.
func DecodeHmpbMetadata(data []byte) (PageMetadata, error) {
	payload := string(data)
	if !strings.HasPrefix(payload, hmpbPayloadPrefix) {
		if strings.HasPrefix(payload, bmdPayloadPrefix) {
			return PageMetadata{}, ErrNotHmpbQrcode
		}
		return PageMetadata{}, fmt.Errorf("%w: unrecognized prefix", ErrInvalidQrcodeData)
	}

	var metadata PageMetadata
	if err := json.Unmarshal(data[len(hmpbPayloadPrefix):], &metadata); err != nil {
		return PageMetadata{}, fmt.Errorf("%w: %v", ErrInvalidQrcodeData, err)
	}
	if metadata.PageNumber < 1 {
		return PageMetadata{}, fmt.Errorf("%w: page number %d", ErrInvalidQrcodeData, metadata.PageNumber)
	}
	return metadata, nil
}

// EncodeBmdPayload serializes a machine-printed ballot into a QR payload.
func EncodeBmdPayload(payload BmdPayload) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode bmd payload: %w", err)
	}
	return append([]byte(bmdPayloadPrefix), body...), nil
}

// DecodeBmdPayload parses a QR payload as a machine-printed ballot.
func DecodeBmdPayload(data []byte) (BmdPayload, error) {
	payload := string(data)
	if !strings.HasPrefix(payload, bmdPayloadPrefix) {
		return BmdPayload{}, fmt.Errorf("%w: unrecognized prefix", ErrInvalidQrcodeData)
	}

	var decoded BmdPayload
	if err := json.Unmarshal(data[len(bmdPayloadPrefix):], &decoded); err != nil {
		return BmdPayload{}, fmt.Errorf("%w: %v", ErrInvalidQrcodeData, err)
	}
	return decoded, nil
}

// NormalizeSheetQrcodes fills in the missing QR code on a sheet where exactly
// one side carries decodable hand-marked page metadata. Pages of a sheet are
// physically consecutive, so an even page implies its mate is the preceding
// odd page and an odd page implies the following even page. The repaired side
// copies the known side's QR position and gets a freshly encoded payload.
// Sheets where both sides decoded, neither decoded, or the known side is a
// machine-printed ballot pass through unchanged.
func NormalizeSheetQrcodes(front, back *Qrcode) (*Qrcode, *Qrcode, error) {
	frontMeta, frontOK := decodableHmpb(front)
	backMeta, backOK := decodableHmpb(back)

	switch {
	case frontOK == backOK:
		return front, back, nil
	case frontOK:
		repaired, err := inferMateQrcode(front, frontMeta)
		if err != nil {
			return front, back, err
		}
		return front, repaired, nil
	default:
		repaired, err := inferMateQrcode(back, backMeta)
		if err != nil {
			return front, back, err
		}
		return repaired, back, nil
	}
}

func decodableHmpb(qrcode *Qrcode) (PageMetadata, bool) {
	if qrcode == nil {
		return PageMetadata{}, false
	}
	metadata, err := DecodeHmpbMetadata(qrcode.Data)
	if err != nil {
		return PageMetadata{}, false
	}
	return metadata, true
}

func inferMateQrcode(known *Qrcode, metadata PageMetadata) (*Qrcode, error) {
	inferred := metadata
	if metadata.PageNumber%2 == 0 {
		inferred.PageNumber = metadata.PageNumber - 1
	} else {
		inferred.PageNumber = metadata.PageNumber + 1
	}
	if inferred.PageNumber < 1 {
		return nil, fmt.Errorf("cannot infer sheet mate for page %d", metadata.PageNumber)
	}

	data, err := EncodeHmpbMetadata(inferred)
	if err != nil {
		return nil, err
	}
	return &Qrcode{Data: data, Position: known.Position}, nil
}
