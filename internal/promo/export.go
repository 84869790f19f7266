package promo

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
)

const poolSheet = "Codes"

// ExportPool renders the sub-codes of a pool promo as a workbook, unused first.
func (s *service) ExportPool(ctx context.Context, id uuid.UUID) ([]byte, error) {
	promo, err := s.load(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !promo.IsMultiCode {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "promo has no code pool")
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", poolSheet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "prepare workbook")
	}
	header := []any{"Code", "Used", "Customer", "Used At"}
	if err := f.SetSheetRow(poolSheet, "A1", &header); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write header")
	}
	_ = f.SetColWidth(poolSheet, "A", "A", 30)
	_ = f.SetColWidth(poolSheet, "B", "D", 20)

	for i, pc := range promo.PoolCodes {
		customer, usedAt := "", ""
		if pc.CustomerID != nil {
			customer = pc.CustomerID.String()
		}
		if pc.UsedAt != nil {
			usedAt = pc.UsedAt.In(s.clock.LocalNow().Location()).Format("2006-01-02 15:04")
		}
		row := []any{pc.Code, pc.Used, customer, usedAt}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(poolSheet, cell, &row); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write row")
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode workbook")
	}
	return buf.Bytes(), nil
}
