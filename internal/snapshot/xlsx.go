package snapshot

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ExportXLSX writes a snapshot as a two-sheet workbook: a summary sheet with
// the page totals and a per-product sheet sellers can sort and filter.
func ExportXLSX(snap *Snapshot, path string) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "snapshot: xlsx add summary sheet")
	}
	addKV(summary, "Keyword", snap.Keyword)
	addKV(summary, "Snapshot ID", snap.ID)
	addKV(summary, "Created", snap.CreatedAt.Format("2006-01-02 15:04:05"))
	addKV(summary, "Market shape", snap.Totals.Shape)
	addKV(summary, "Category", snap.Totals.Category)
	addKV(summary, "Monthly units", fmt.Sprintf("%d", snap.Totals.Units))
	addKV(summary, "Monthly revenue", fmt.Sprintf("%.2f", snap.Totals.Revenue))
	addKV(summary, "Products", fmt.Sprintf("%d", len(snap.Products)))
	if snap.Multiplier != nil {
		addKV(summary, "Calibration source", snap.Multiplier.Source)
		addKV(summary, "Units multiplier", fmt.Sprintf("%.2f", snap.Multiplier.UnitsMultiplier))
		addKV(summary, "Revenue multiplier", fmt.Sprintf("%.2f", snap.Multiplier.RevenueMultiplier))
	}

	sheet, err := f.AddSheet("Products")
	if err != nil {
		return eris.Wrap(err, "snapshot: xlsx add products sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"ASIN", "Organic Rank", "Page Position", "Sponsored", "Appearances",
		"Boosted", "Brand", "Price", "Rating", "Reviews", "Fulfillment",
		"Monthly Units", "Monthly Revenue", "Revenue Share %",
	} {
		header.AddCell().SetString(h)
	}

	for i := range snap.Products {
		p := &snap.Products[i]
		row := sheet.AddRow()
		row.AddCell().SetString(p.ASIN)
		if p.OrganicRank != nil {
			row.AddCell().SetInt(*p.OrganicRank)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetInt(p.PagePosition)
		row.AddCell().SetBool(p.AppearsSponsored)
		row.AddCell().SetInt(p.AppearanceCount)
		row.AddCell().SetBool(p.AlgorithmBoosted)
		row.AddCell().SetString(p.Brand)
		row.AddCell().SetFloat(p.Price)
		row.AddCell().SetFloat(p.Rating)
		row.AddCell().SetInt(p.ReviewCount)
		row.AddCell().SetString(p.Fulfillment)
		row.AddCell().SetInt(p.EstimatedMonthlyUnits)
		row.AddCell().SetFloat(p.EstimatedMonthlyRevenue)
		row.AddCell().SetFloat(p.RevenueSharePct)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "snapshot: xlsx save %s", path)
	}
	return nil
}

func addKV(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetString(value)
}
