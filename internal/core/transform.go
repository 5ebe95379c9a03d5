package core

// Transform maps raw rows to expense records stamped with period.
// It is a pure one-to-one mapping: the result has len(rows) records in
// input order, and rows with no usable data still produce a record.
func Transform(rows []RawRow, period ReportingPeriod) []ExpenseRecord {
	records := make([]ExpenseRecord, len(rows))
	for i, row := range rows {
		records[i] = transformRow(row, period)
	}
	return records
}

func transformRow(row RawRow, period ReportingPeriod) ExpenseRecord {
	return ExpenseRecord{
		ReferenceDate: period.ReferenceDate,
		Year:          period.Year,
		Month:         period.MonthLabel,

		Branch:   CellText(row[ColBranch]),
		Group:    CellText(row[ColGroup]),
		Subgroup: CellText(row[ColSubgroup]),
		Center:   CellText(row[ColCenter]),
		Plan:     CellText(row[ColPlan]),
		Vendor:   CellText(row[ColVendor]),
		Title:    CellText(row[ColTitle]),

		Paid: NormalizeCurrency(row[ColPaid]),
		Open: NormalizeCurrency(row[ColOpen]),
	}
}
