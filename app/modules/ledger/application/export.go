package ledgerservice

import (
	"bytes"
	"fmt"
	"time"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/xuri/excelize/v2"
)

// ExportSheet is the worksheet name written by ExportTopXLSX.
const ExportSheet = "Leaderboard"

var exportHeader = []any{"Rank", "Participant", "Best score", "Submitted at (UTC)"}

// ExportTopXLSX writes ranked entries to a single-sheet workbook.
func ExportTopXLSX(entries []ledgerdomain.RankedEntry, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), ExportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range entries {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			e.Rank,
			string(e.ParticipantID),
			e.BestScore,
			e.SubmittedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(ExportSheet, axis, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(ExportSheet, "B", "B", 46); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(ExportSheet, "D", "D", 24); err != nil {
		return nil, err
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Score ledger export",
		Created: generatedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
