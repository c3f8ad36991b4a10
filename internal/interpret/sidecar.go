package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"ballotscan/internal/domain/ballot"
	"ballotscan/internal/ports"
)

// Sidecar file suffixes next to each page image. The qrcode sidecar holds a
// ballot.Qrcode JSON object; the marks sidecar holds a ballot.MarkInfo JSON
// object for hand-marked pages.
const (
	QrcodeSidecarSuffix = ".qrcode"
	MarksSidecarSuffix  = ".marks"
)

var ErrNotConfigured = errors.New("interpreter is not configured")

// SidecarInterpreter interprets page images from sidecar files captured
// alongside them. It implements the worker protocol and backs both the
// in-process transport and the stdio worker process.
type SidecarInterpreter struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewSidecarInterpreter() *SidecarInterpreter {
	return &SidecarInterpreter{}
}

// Handle processes one worker request.
func (s *SidecarInterpreter) Handle(ctx context.Context, input Input) (Output, error) {
	if ctx == nil {
		return Output{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	switch input.Action {
	case ActionConfigure:
		return s.configure(input)
	case ActionDetectQrcode:
		return s.detectQrcode(input)
	case ActionInterpret:
		return s.interpret(input)
	default:
		return Output{Error: fmt.Sprintf("unknown action %q", input.Action)}, nil
	}
}

func (s *SidecarInterpreter) configure(input Input) (Output, error) {
	if input.Config == nil || input.Config.Election == nil {
		return Output{Error: "configure requires an election"}, nil
	}

	s.mu.Lock()
	s.cfg = input.Config
	s.mu.Unlock()
	return Output{}, nil
}

func (s *SidecarInterpreter) detectQrcode(input Input) (Output, error) {
	qrcode, err := readQrcodeSidecar(input.ImagePath)
	if err != nil {
		return Output{Error: err.Error()}, nil
	}
	return Output{Qrcode: qrcode}, nil
}

func (s *SidecarInterpreter) interpret(input Input) (Output, error) {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	if cfg == nil {
		return Output{Error: ErrNotConfigured.Error()}, nil
	}

	interpretation, err := s.interpretPage(cfg, input)
	if err != nil {
		return Output{Error: err.Error()}, nil
	}
	return Output{Interpretation: &ballot.InterpretationField{PageInterpretation: interpretation}}, nil
}

func (s *SidecarInterpreter) interpretPage(cfg *Config, input Input) (ballot.PageInterpretation, error) {
	if input.Qrcode == nil {
		return ballot.BlankPage{}, nil
	}

	if payload, err := ballot.DecodeBmdPayload(input.Qrcode.Data); err == nil {
		if payload.Metadata.IsTestMode != cfg.TestMode {
			return ballot.InvalidTestModePage{
				Metadata: ballot.PageMetadata{BallotMetadata: payload.Metadata},
			}, nil
		}
		return ballot.InterpretedBmdPage{
			BallotID: payload.BallotID,
			Metadata: payload.Metadata,
			Votes:    payload.Votes,
		}, nil
	}

	metadata, err := ballot.DecodeHmpbMetadata(input.Qrcode.Data)
	if err != nil {
		return ballot.UnreadablePage{Reason: err.Error()}, nil
	}
	if metadata.IsTestMode != cfg.TestMode {
		return ballot.InvalidTestModePage{Metadata: metadata}, nil
	}

	contestIDs := templateContestIDs(cfg.Templates, metadata)
	markInfo, err := readMarksSidecar(input.ImagePath)
	if err != nil {
		return nil, err
	}
	if markInfo == nil || contestIDs == nil {
		return ballot.UninterpretedHmpbPage{Metadata: metadata}, nil
	}

	return scorePage(cfg, metadata, contestIDs, *markInfo), nil
}

// scorePage turns raw mark scores into votes and adjudication reasons.
func scorePage(cfg *Config, metadata ballot.PageMetadata, contestIDs []string, markInfo ballot.MarkInfo) ballot.PageInterpretation {
	statuses := make(map[string]map[string]ballot.MarkStatus)
	votes := make(ballot.Votes)
	for _, mark := range markInfo.Marks {
		status := ballot.MarkStatusUnmarked
		switch {
		case mark.Score >= cfg.MarkThresholds.Definite:
			status = ballot.MarkStatusMarked
			votes[mark.ContestID] = append(votes[mark.ContestID], mark.OptionID)
		case mark.Score >= cfg.MarkThresholds.Marginal:
			status = ballot.MarkStatusMarginal
		}
		if statuses[mark.ContestID] == nil {
			statuses[mark.ContestID] = make(map[string]ballot.MarkStatus)
		}
		statuses[mark.ContestID][mark.OptionID] = status
	}

	contests := cfg.Election.Election.ContestsForIDs(contestIDs)
	allReasonInfos := ballot.BallotAdjudicationReasons(contests, func(contestID, optionID string) ballot.MarkStatus {
		if status, ok := statuses[contestID][optionID]; ok {
			return status
		}
		return ballot.MarkStatusUnmarked
	})
	enabledInfos, ignoredInfos := ballot.SplitAdjudicationReasons(allReasonInfos, cfg.AdjudicationReasons)

	return ballot.InterpretedHmpbPage{
		Metadata: metadata,
		MarkInfo: markInfo,
		AdjudicationInfo: ballot.AdjudicationInfo{
			RequiresAdjudication: len(enabledInfos) > 0,
			EnabledReasons:       cfg.AdjudicationReasons,
			EnabledReasonInfos:   enabledInfos,
			IgnoredReasonInfos:   ignoredInfos,
		},
		Votes: votes,
	}
}

func templateContestIDs(templates []ports.HmpbTemplate, metadata ballot.PageMetadata) []string {
	for _, template := range templates {
		if template.BallotStyleID != metadata.BallotStyleID {
			continue
		}
		if template.PrecinctID != "" && template.PrecinctID != metadata.PrecinctID {
			continue
		}
		if template.PageNumber == metadata.PageNumber {
			return template.ContestIDs
		}
	}
	return nil
}

func readQrcodeSidecar(imagePath string) (*ballot.Qrcode, error) {
	raw, err := os.ReadFile(imagePath + QrcodeSidecarSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read qrcode sidecar: %w", err)
	}

	var qrcode ballot.Qrcode
	if err := json.Unmarshal(raw, &qrcode); err != nil {
		return nil, fmt.Errorf("parse qrcode sidecar: %w", err)
	}
	return &qrcode, nil
}

func readMarksSidecar(imagePath string) (*ballot.MarkInfo, error) {
	raw, err := os.ReadFile(imagePath + MarksSidecarSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read marks sidecar: %w", err)
	}

	var markInfo ballot.MarkInfo
	if err := json.Unmarshal(raw, &markInfo); err != nil {
		return nil, fmt.Errorf("parse marks sidecar: %w", err)
	}
	return &markInfo, nil
}
