package core

import (
	"fmt"
	"strconv"
	"strings"
)

// monthLabels holds the pt-BR month names used when no label is configured.
var monthLabels = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// ReportingPeriod is the year/month stamp attached to every record of a run.
type ReportingPeriod struct {
	ReferenceDate string `json:"referenceDate"` // YYYY-MM-01
	Year          string `json:"year"`
	MonthLabel    string `json:"monthLabel"`
}

// NewReportingPeriod builds the period for a run.
// An empty label falls back to the Portuguese month name.
func NewReportingPeriod(year, month int, label string) (ReportingPeriod, error) {
	if year < 1 || year > 9999 {
		return ReportingPeriod{}, fmt.Errorf("%w: year %d must be 1-9999", ErrInvalidPeriod, year)
	}
	if month < 1 || month > 12 {
		return ReportingPeriod{}, fmt.Errorf("%w: month %d must be 1-12", ErrInvalidPeriod, month)
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = monthLabels[month-1]
	}

	return ReportingPeriod{
		ReferenceDate: fmt.Sprintf("%04d-%02d-01", year, month),
		Year:          strconv.Itoa(year),
		MonthLabel:    label,
	}, nil
}

// String returns the ISO reference date.
func (p ReportingPeriod) String() string {
	return p.ReferenceDate
}
