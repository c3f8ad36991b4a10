package ballot

import "errors"

var (
	ErrNoElection          = errors.New("no election configuration")
	ErrUnknownBallotStyle  = errors.New("unknown ballot style")
	ErrUnknownContest      = errors.New("unknown contest")
	ErrInvalidQrcodeData   = errors.New("invalid qrcode payload")
	ErrNotHmpbQrcode       = errors.New("qrcode payload is not hand-marked ballot metadata")
	ErrMissingPageMetadata = errors.New("expected a sheet to have two pages with metadata")
)
