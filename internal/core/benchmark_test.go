package core

import (
	"strconv"
	"testing"
)

// BenchmarkNormalizeCurrency covers the cell shapes seen in exported sheets.
func BenchmarkNormalizeCurrency(b *testing.B) {
	cases := []any{
		"1,208.73",
		"  999.99  ",
		"12345",
		"R$ 10,00",
		1208.73,
		nil,
		"",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cases {
			NormalizeCurrency(c)
		}
	}
}

func BenchmarkNormalizeCurrency_Thousands(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NormalizeCurrency("1,234,567.89")
	}
}

func BenchmarkCellText(b *testing.B) {
	cases := []any{"Matriz", 101.0, 7, nil, ""}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cases {
			CellText(c)
		}
	}
}

func BenchmarkTransform(b *testing.B) {
	period, err := NewReportingPeriod(2025, 10, "")
	if err != nil {
		b.Fatal(err)
	}
	rows := generateRows(10_000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Transform(rows, period)
	}
}

func BenchmarkTransformParallel(b *testing.B) {
	period, err := NewReportingPeriod(2025, 10, "")
	if err != nil {
		b.Fatal(err)
	}
	rows := generateRows(1_000)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			Transform(rows, period)
		}
	})
}

func generateRows(n int) []RawRow {
	rows := make([]RawRow, n)
	for i := range rows {
		rows[i] = RawRow{
			ColBranch:   "Filial " + strconv.Itoa(i%12),
			ColGroup:    "Despesas Fixas",
			ColSubgroup: "Aluguel",
			ColCenter:   "ADM",
			ColPlan:     "3.1.01",
			ColVendor:   "Fornecedor " + strconv.Itoa(i%300),
			ColTitle:    "NF " + strconv.Itoa(i),
			ColPaid:     "1," + strconv.Itoa(100+i%900) + ".50",
			ColOpen:     nil,
		}
	}
	return rows
}
