package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ballotscan/internal/domain/ballot"
	"ballotscan/internal/errs"
	"ballotscan/internal/infrastructure/persistence/sqlite/model"
	"ballotscan/internal/ports"
)

const electionConfigRowID = 1

// ScanStore is the sqlite-backed implementation of ports.Store.
type ScanStore struct {
	db        *gorm.DB
	scannerID string
}

func NewScanStore(db *gorm.DB, scannerID string) *ScanStore {
	if strings.TrimSpace(scannerID) == "" {
		scannerID = "000"
	}
	return &ScanStore{db: db, scannerID: scannerID}
}

func (s *ScanStore) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return s.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func nowText() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeText(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// --- election configuration ---

func (s *ScanStore) GetElectionState(ctx context.Context) (ports.ElectionState, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.ElectionState{}, err
	}

	row, err := getOrInitConfig(db)
	if err != nil {
		return ports.ElectionState{}, err
	}

	state := ports.ElectionState{
		TestMode:          row.TestMode,
		CurrentPrecinctID: row.CurrentPrecinctID,
	}
	if len(row.ElectionJSON) > 0 {
		var definition ballot.ElectionDefinition
		if err := json.Unmarshal(row.ElectionJSON, &definition); err != nil {
			return ports.ElectionState{}, errs.Wrap(err, "parse stored election")
		}
		state.Definition = &definition
	}
	if len(row.AdjudicationReasons) > 0 {
		if err := json.Unmarshal(row.AdjudicationReasons, &state.AdjudicationReasons); err != nil {
			return ports.ElectionState{}, errs.Wrap(err, "parse stored adjudication reasons")
		}
	}
	if len(row.MarkThresholds) > 0 {
		if err := json.Unmarshal(row.MarkThresholds, &state.MarkThresholds); err != nil {
			return ports.ElectionState{}, errs.Wrap(err, "parse stored mark thresholds")
		}
	}
	return state, nil
}

func (s *ScanStore) SetElection(ctx context.Context, definition *ballot.ElectionDefinition) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"election_json": nil,
		"election_hash": "",
		"updated_at":    nowText(),
	}
	if definition != nil {
		raw, err := json.Marshal(definition)
		if err != nil {
			return errs.Wrap(err, "encode election")
		}
		updates["election_json"] = datatypes.JSON(raw)
		updates["election_hash"] = definition.ElectionHash
	}
	return s.updateConfig(db, updates)
}

func (s *ScanStore) SetTestMode(ctx context.Context, testMode bool) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}
	return s.updateConfig(db, map[string]interface{}{
		"test_mode":  testMode,
		"updated_at": nowText(),
	})
}

func (s *ScanStore) SetCurrentPrecinct(ctx context.Context, precinctID string) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}
	return s.updateConfig(db, map[string]interface{}{
		"current_precinct_id": precinctID,
		"updated_at":          nowText(),
	})
}

func (s *ScanStore) SetAdjudicationReasons(ctx context.Context, reasons []ballot.AdjudicationReason) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(reasons)
	if err != nil {
		return errs.Wrap(err, "encode adjudication reasons")
	}
	return s.updateConfig(db, map[string]interface{}{
		"adjudication_reasons_json": datatypes.JSON(raw),
		"updated_at":                nowText(),
	})
}

func (s *ScanStore) SetMarkThresholds(ctx context.Context, thresholds ports.MarkThresholds) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(thresholds)
	if err != nil {
		return errs.Wrap(err, "encode mark thresholds")
	}
	return s.updateConfig(db, map[string]interface{}{
		"mark_thresholds_json": datatypes.JSON(raw),
		"updated_at":           nowText(),
	})
}

func (s *ScanStore) updateConfig(db *gorm.DB, updates map[string]interface{}) error {
	if _, err := getOrInitConfig(db); err != nil {
		return err
	}
	if err := db.Model(&model.ElectionConfig{}).
		Where("id = ?", electionConfigRowID).
		Updates(updates).Error; err != nil {
		return errs.Wrap(err, "update election config")
	}
	return nil
}

func getOrInitConfig(db *gorm.DB) (model.ElectionConfig, error) {
	var row model.ElectionConfig
	err := db.Where("id = ?", electionConfigRowID).First(&row).Error
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ElectionConfig{}, errs.Wrap(err, "query election config")
	}

	row = model.ElectionConfig{
		ID:        electionConfigRowID,
		TestMode:  true,
		UpdatedAt: nowText(),
	}
	if err := db.Create(&row).Error; err != nil {
		return model.ElectionConfig{}, errs.Wrap(err, "init election config")
	}
	return row, nil
}

// --- hmpb templates ---

func (s *ScanStore) AddHmpbTemplate(ctx context.Context, template ports.HmpbTemplate) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(template.ContestIDs)
	if err != nil {
		return errs.Wrap(err, "encode template contest ids")
	}
	row := model.HmpbTemplate{
		BallotStyleID: template.BallotStyleID,
		PrecinctID:    template.PrecinctID,
		PageNumber:    template.PageNumber,
		ContestIDs:    datatypes.JSON(raw),
		CreatedAt:     nowText(),
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert hmpb template")
	}
	return nil
}

func (s *ScanStore) ListHmpbTemplates(ctx context.Context) ([]ports.HmpbTemplate, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.HmpbTemplate
	if err := db.Order("template_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query hmpb templates")
	}

	templates := make([]ports.HmpbTemplate, 0, len(rows))
	for _, row := range rows {
		var contestIDs []string
		if err := json.Unmarshal(row.ContestIDs, &contestIDs); err != nil {
			return nil, errs.Wrap(err, "parse template contest ids")
		}
		templates = append(templates, ports.HmpbTemplate{
			BallotStyleID: row.BallotStyleID,
			PrecinctID:    row.PrecinctID,
			PageNumber:    row.PageNumber,
			ContestIDs:    contestIDs,
		})
	}
	return templates, nil
}

func (s *ScanStore) ContestIDsForPage(ctx context.Context, metadata ballot.PageMetadata) ([]string, error) {
	templates, err := s.ListHmpbTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for _, template := range templates {
		if template.BallotStyleID != metadata.BallotStyleID {
			continue
		}
		if template.PrecinctID != "" && template.PrecinctID != metadata.PrecinctID {
			continue
		}
		if template.PageNumber == metadata.PageNumber {
			return template.ContestIDs, nil
		}
	}
	return nil, nil
}

// --- batches ---

func (s *ScanStore) AddBatch(ctx context.Context) (ports.BatchInfo, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.BatchInfo{}, err
	}

	var row model.Batch
	err = db.Transaction(func(tx *gorm.DB) error {
		// include logically deleted batches, their numbers stay taken
		var maxNumber uint64
		if err := tx.Unscoped().Model(&model.Batch{}).
			Select("coalesce(max(batch_number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return errs.Wrap(err, "query max batch number")
		}

		row = model.Batch{
			BatchID:     uuid.NewString(),
			BatchNumber: maxNumber + 1,
			Label:       fmt.Sprintf("Batch %d", maxNumber+1),
			StartedAt:   nowText(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert batch")
		}
		return nil
	})
	if err != nil {
		return ports.BatchInfo{}, err
	}
	return mapBatch(row, 0), nil
}

func (s *ScanStore) FinishBatch(ctx context.Context, batchID string, batchError string) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{"ended_at": nowText()}
	if batchError != "" {
		updates["error"] = batchError
	}
	result := db.Model(&model.Batch{}).Where("batch_id = ?", batchID).Updates(updates)
	if result.Error != nil {
		return errs.Wrap(result.Error, "finish batch")
	}
	if result.RowsAffected == 0 {
		return ports.ErrBatchNotFound
	}
	return nil
}

func (s *ScanStore) ListBatches(ctx context.Context) ([]ports.BatchInfo, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Batch
	if err := db.Order("batch_number asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query batches")
	}

	batches := make([]ports.BatchInfo, 0, len(rows))
	for _, row := range rows {
		var count int64
		if err := db.Model(&model.Sheet{}).
			Where("batch_id = ?", row.BatchID).
			Count(&count).Error; err != nil {
			return nil, errs.Wrap(err, "count batch sheets")
		}
		batches = append(batches, mapBatch(row, int(count)))
	}
	return batches, nil
}

// CleanupIncompleteBatches removes batches that never finished, together with
// their sheets. Run at startup to recover from a crash mid-scan.
func (s *ScanStore) CleanupIncompleteBatches(ctx context.Context) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var batchIDs []string
		if err := tx.Model(&model.Batch{}).
			Select("batch_id").
			Where("ended_at IS NULL").
			Scan(&batchIDs).Error; err != nil {
			return errs.Wrap(err, "query incomplete batches")
		}
		if len(batchIDs) == 0 {
			return nil
		}

		if err := tx.Where("batch_id IN ?", batchIDs).Delete(&model.Sheet{}).Error; err != nil {
			return errs.Wrap(err, "delete sheets of incomplete batches")
		}
		if err := tx.Where("batch_id IN ?", batchIDs).Delete(&model.Batch{}).Error; err != nil {
			return errs.Wrap(err, "delete incomplete batches")
		}
		return nil
	})
}

func mapBatch(row model.Batch, sheetCount int) ports.BatchInfo {
	info := ports.BatchInfo{
		ID:         row.BatchID,
		Label:      row.Label,
		StartedAt:  parseTimeText(row.StartedAt),
		SheetCount: sheetCount,
	}
	if row.EndedAt != nil {
		ended := parseTimeText(*row.EndedAt)
		info.EndedAt = &ended
	}
	if row.Error != nil {
		info.Error = *row.Error
	}
	return info
}

// --- sheets ---

func (s *ScanStore) AddSheet(ctx context.Context, sheetID, batchID string, front, back ports.Page) (bool, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	requiresAdjudication := ballot.ClassifySheet(front.Interpretation, back.Interpretation) != ballot.CastableWithoutReview

	frontJSON, err := ballot.MarshalInterpretation(front.Interpretation)
	if err != nil {
		return false, errs.Wrap(err, "encode front interpretation")
	}
	backJSON, err := ballot.MarshalInterpretation(back.Interpretation)
	if err != nil {
		return false, errs.Wrap(err, "encode back interpretation")
	}
	frontContests, err := json.Marshal(front.ContestIDs)
	if err != nil {
		return false, errs.Wrap(err, "encode front contest ids")
	}
	backContests, err := json.Marshal(back.ContestIDs)
	if err != nil {
		return false, errs.Wrap(err, "encode back contest ids")
	}

	row := model.Sheet{
		SheetID:              sheetID,
		BatchID:              batchID,
		FrontOriginalPath:    front.Files.Original,
		FrontNormalizedPath:  front.Files.Normalized,
		BackOriginalPath:     back.Files.Original,
		BackNormalizedPath:   back.Files.Normalized,
		FrontInterpretation:  datatypes.JSON(frontJSON),
		BackInterpretation:   datatypes.JSON(backJSON),
		FrontContestIDs:      datatypes.JSON(frontContests),
		BackContestIDs:       datatypes.JSON(backContests),
		RequiresAdjudication: requiresAdjudication,
		CreatedAt:            nowText(),
	}
	if err := db.Create(&row).Error; err != nil {
		return false, errs.Wrap(err, "insert sheet")
	}
	return requiresAdjudication, nil
}

func (s *ScanStore) GetSheet(ctx context.Context, sheetID string) (ports.SheetInfo, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.SheetInfo{}, err
	}

	var row model.Sheet
	if err := db.Where("sheet_id = ?", sheetID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.SheetInfo{}, ports.ErrSheetNotFound
		}
		return ports.SheetInfo{}, errs.Wrap(err, "query sheet")
	}
	return mapSheet(row)
}

// DeleteSheet marks a sheet deleted. The row stays in place so exported
// artifacts that referenced it keep resolving; every query on this store
// skips deleted rows.
func (s *ScanStore) DeleteSheet(ctx context.Context, sheetID string) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("sheet_id = ?", sheetID).Delete(&model.Sheet{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete sheet")
	}
	if result.RowsAffected == 0 {
		return ports.ErrSheetNotFound
	}
	return nil
}

// GetNextAdjudicationSheet returns the oldest sheet still waiting for review,
// or nil when the queue is empty.
func (s *ScanStore) GetNextAdjudicationSheet(ctx context.Context) (*ports.SheetInfo, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var row model.Sheet
	err = db.
		Where("requires_adjudication = ?", true).
		Where("front_adjudicated_at IS NULL OR back_adjudicated_at IS NULL").
		Order("created_at asc").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "query next adjudication sheet")
	}

	info, err := mapSheet(row)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *ScanStore) AdjudicateSheet(ctx context.Context, sheetID string, side ports.Side, marks ballot.MarksByContestID) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(marks)
	if err != nil {
		return errs.Wrap(err, "encode adjudication")
	}

	updates := map[string]interface{}{}
	switch side {
	case ports.SideFront:
		updates["front_adjudication_json"] = datatypes.JSON(raw)
		updates["front_adjudicated_at"] = nowText()
	case ports.SideBack:
		updates["back_adjudication_json"] = datatypes.JSON(raw)
		updates["back_adjudicated_at"] = nowText()
	default:
		return fmt.Errorf("unknown sheet side %q", side)
	}

	result := db.Model(&model.Sheet{}).Where("sheet_id = ?", sheetID).Updates(updates)
	if result.Error != nil {
		return errs.Wrap(result.Error, "adjudicate sheet")
	}
	if result.RowsAffected == 0 {
		return ports.ErrSheetNotFound
	}
	return nil
}

func (s *ScanStore) AdjudicationStatus(ctx context.Context) (ports.AdjudicationStatus, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return ports.AdjudicationStatus{}, err
	}

	var adjudicated int64
	if err := db.Model(&model.Sheet{}).
		Where("requires_adjudication = ?", true).
		Where("front_adjudicated_at IS NOT NULL AND back_adjudicated_at IS NOT NULL").
		Count(&adjudicated).Error; err != nil {
		return ports.AdjudicationStatus{}, errs.Wrap(err, "count adjudicated sheets")
	}

	var remaining int64
	if err := db.Model(&model.Sheet{}).
		Where("requires_adjudication = ?", true).
		Where("front_adjudicated_at IS NULL OR back_adjudicated_at IS NULL").
		Count(&remaining).Error; err != nil {
		return ports.AdjudicationStatus{}, errs.Wrap(err, "count remaining sheets")
	}

	return ports.AdjudicationStatus{
		Adjudicated: int(adjudicated),
		Remaining:   int(remaining),
	}, nil
}

func mapSheet(row model.Sheet) (ports.SheetInfo, error) {
	front, err := mapPage(
		row.FrontOriginalPath, row.FrontNormalizedPath,
		row.FrontInterpretation, row.FrontContestIDs,
		row.FrontAdjudication, row.FrontAdjudicatedAt,
	)
	if err != nil {
		return ports.SheetInfo{}, errs.Wrap(err, "map front page")
	}
	back, err := mapPage(
		row.BackOriginalPath, row.BackNormalizedPath,
		row.BackInterpretation, row.BackContestIDs,
		row.BackAdjudication, row.BackAdjudicatedAt,
	)
	if err != nil {
		return ports.SheetInfo{}, errs.Wrap(err, "map back page")
	}

	return ports.SheetInfo{
		ID:      row.SheetID,
		BatchID: row.BatchID,
		Front:   front,
		Back:    back,
	}, nil
}

func mapPage(
	originalPath, normalizedPath string,
	interpretationJSON, contestIDsJSON, adjudicationJSON datatypes.JSON,
	adjudicatedAt *string,
) (ports.Page, error) {
	interpretation, err := ballot.UnmarshalInterpretation(interpretationJSON)
	if err != nil {
		return ports.Page{}, err
	}

	page := ports.Page{
		Files: ports.PageFiles{
			Original:   originalPath,
			Normalized: normalizedPath,
		},
		Interpretation: interpretation,
	}
	if len(contestIDsJSON) > 0 {
		if err := json.Unmarshal(contestIDsJSON, &page.ContestIDs); err != nil {
			return ports.Page{}, err
		}
	}
	if len(adjudicationJSON) > 0 {
		if err := json.Unmarshal(adjudicationJSON, &page.Adjudication); err != nil {
			return ports.Page{}, err
		}
	}
	if adjudicatedAt != nil {
		t := parseTimeText(*adjudicatedAt)
		page.AdjudicatedAt = &t
	}
	return page, nil
}

// --- export, zero, backup ---

// ExportCvrs writes one cast vote record per line, in batch then scan order.
// Sheets that hold no castable ballot are skipped; incoherent hand-marked
// sheets fail the export.
func (s *ScanStore) ExportCvrs(ctx context.Context, w io.Writer) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}
	if w == nil {
		return errors.New("writer is required")
	}

	state, err := s.GetElectionState(ctx)
	if err != nil {
		return err
	}
	if state.Definition == nil {
		return ballot.ErrNoElection
	}

	var batches []model.Batch
	if err := db.Order("batch_number asc").Find(&batches).Error; err != nil {
		return errs.Wrap(err, "query batches")
	}

	encoder := json.NewEncoder(w)
	for _, batch := range batches {
		var sheets []model.Sheet
		if err := db.
			Where("batch_id = ?", batch.BatchID).
			Order("created_at asc").
			Find(&sheets).Error; err != nil {
			return errs.Wrap(err, "query batch sheets")
		}

		for _, row := range sheets {
			info, err := mapSheet(row)
			if err != nil {
				return err
			}

			cvr, err := ballot.BuildCastVoteRecord(
				info.ID, batch.BatchID, batch.Label, info.ID,
				s.scannerID, &state.Definition.Election,
				pageWithAdjudication(info.Front), pageWithAdjudication(info.Back),
			)
			if err != nil {
				return errs.Wrapf(err, "build cvr for sheet %s", info.ID)
			}
			if cvr == nil {
				continue
			}
			if err := encoder.Encode(cvr); err != nil {
				return errs.Wrap(err, "write cvr")
			}
		}
	}
	return nil
}

func pageWithAdjudication(page ports.Page) ballot.PageWithAdjudication {
	return ballot.PageWithAdjudication{
		Interpretation: page.Interpretation,
		ContestIDs:     page.ContestIDs,
		Adjudication:   page.Adjudication,
	}
}

// Zero deletes all scan data but keeps the election configuration. Unlike
// DeleteSheet this is a physical wipe; batch numbering restarts at 1.
func (s *ScanStore) Zero(ctx context.Context) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&model.Sheet{}).Error; err != nil {
			return errs.Wrap(err, "delete sheets")
		}
		if err := tx.Unscoped().Where("1 = 1").Delete(&model.Batch{}).Error; err != nil {
			return errs.Wrap(err, "delete batches")
		}
		return nil
	})
}

// Backup writes a consistent snapshot of the database to destPath.
func (s *ScanStore) Backup(ctx context.Context, destPath string) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(destPath) == "" {
		return errors.New("backup destination is required")
	}

	if err := db.Exec("VACUUM INTO ?", destPath).Error; err != nil {
		return errs.Wrap(err, "vacuum into backup")
	}
	return nil
}

var _ ports.Store = (*ScanStore)(nil)
