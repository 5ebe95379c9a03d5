package core

import (
	"errors"
	"testing"
)

func TestNewReportingPeriod(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     int
		label     string
		wantDate  string
		wantYear  string
		wantLabel string
		wantErr   bool
	}{
		{
			name: "explicit label", year: 2025, month: 10, label: "Outubro",
			wantDate: "2025-10-01", wantYear: "2025", wantLabel: "Outubro",
		},
		{
			name: "single digit month is padded", year: 2025, month: 1, label: "Jan",
			wantDate: "2025-01-01", wantYear: "2025", wantLabel: "Jan",
		},
		{
			name: "default label", year: 2024, month: 3,
			wantDate: "2024-03-01", wantYear: "2024", wantLabel: "Março",
		},
		{
			name: "blank label falls back", year: 2024, month: 12, label: "   ",
			wantDate: "2024-12-01", wantYear: "2024", wantLabel: "Dezembro",
		},
		{name: "month zero", year: 2025, month: 0, wantErr: true},
		{name: "month thirteen", year: 2025, month: 13, wantErr: true},
		{name: "negative month", year: 2025, month: -1, wantErr: true},
		{name: "year zero", year: 0, month: 5, wantErr: true},
		{name: "five digit year", year: 10000, month: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewReportingPeriod(tt.year, tt.month, tt.label)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPeriod) {
					t.Fatalf("expected ErrInvalidPeriod, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.ReferenceDate != tt.wantDate {
				t.Errorf("ReferenceDate = %q, want %q", p.ReferenceDate, tt.wantDate)
			}
			if p.Year != tt.wantYear {
				t.Errorf("Year = %q, want %q", p.Year, tt.wantYear)
			}
			if p.MonthLabel != tt.wantLabel {
				t.Errorf("MonthLabel = %q, want %q", p.MonthLabel, tt.wantLabel)
			}
			if p.String() != tt.wantDate {
				t.Errorf("String() = %q, want %q", p.String(), tt.wantDate)
			}
		})
	}
}

func TestNewReportingPeriod_MonthAlwaysTwoDigits(t *testing.T) {
	for m := 1; m <= 12; m++ {
		p, err := NewReportingPeriod(2025, m, "")
		if err != nil {
			t.Fatalf("month %d: %v", m, err)
		}
		if len(p.ReferenceDate) != len("2025-01-01") {
			t.Errorf("month %d: ReferenceDate = %q", m, p.ReferenceDate)
		}
		if p.ReferenceDate[4] != '-' || p.ReferenceDate[7] != '-' {
			t.Errorf("month %d: malformed ReferenceDate %q", m, p.ReferenceDate)
		}
	}
}
