package models

import (
	"testing"

	"github.com/hyperjump/kessan/internal/errs"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
	}{
		{"empty query", &SearchQuery{Query: "   "}, true},
		{"negative limit", &SearchQuery{Query: "revenue", Limit: -1}, true},
		{"unknown mode", &SearchQuery{Query: "revenue", Mode: "fuzzy"}, true},
		{"valid query", &SearchQuery{Query: "revenue"}, false},
		{"caps limit", &SearchQuery{Query: "x", Limit: 500}, false},
		{"keyword mode", &SearchQuery{Query: "x", Mode: ModeKeyword}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errs.IsKind(err, errs.KindValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if tt.query.Limit < 1 || tt.query.Limit > MaxLimit {
				t.Errorf("limit not normalized: %d", tt.query.Limit)
			}
			if tt.query.Mode == "" {
				t.Error("expected mode default")
			}
		})
	}
}

func TestPeriodFilter(t *testing.T) {
	if PeriodFilter("").Active() {
		t.Error("empty period should not filter")
	}
	f := PeriodFilter("Q1-2024")
	if !f.Active() || f.Key != MetaPeriod || *f.Value != "Q1-2024" {
		t.Errorf("unexpected filter %+v", f)
	}
}
