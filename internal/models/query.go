package models

import (
	"strings"

	"github.com/hyperjump/kessan/internal/errs"
)

// SearchMode selects which retrieval passes run.
type SearchMode string

const (
	ModeHybrid   SearchMode = "hybrid"
	ModeSemantic SearchMode = "semantic"
	ModeKeyword  SearchMode = "keyword"
)

const (
	DefaultLimit = 5
	MaxLimit     = 50
)

// Filter restricts retrieval to chunks whose metadata[Key] equals *Value.
// A nil Value disables filtering.
type Filter struct {
	Key   string  `json:"key"`
	Value *string `json:"value,omitempty"`
}

// Active reports whether the filter restricts anything.
func (f Filter) Active() bool {
	return f.Key != "" && f.Value != nil
}

// PeriodFilter returns a filter on the reporting period; empty period
// disables filtering.
func PeriodFilter(period string) Filter {
	if period == "" {
		return Filter{Key: MetaPeriod}
	}
	return Filter{Key: MetaPeriod, Value: &period}
}

// SearchQuery is a retrieval request.
type SearchQuery struct {
	Query  string     `json:"query"`
	Limit  int        `json:"limit,omitempty"`
	Mode   SearchMode `json:"mode,omitempty"`
	Filter Filter     `json:"filter,omitempty"`
}

// Validate rejects empty queries and normalizes limit and mode.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return errs.Validation("query cannot be empty")
	}
	if q.Limit < 0 {
		return errs.Validation("limit must be at least 1, got %d", q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	switch q.Mode {
	case "":
		q.Mode = ModeHybrid
	case ModeHybrid, ModeSemantic, ModeKeyword:
	default:
		return errs.Validation("unknown search mode %q", q.Mode)
	}
	return nil
}

// AskRequest asks a question answered from retrieved context.
type AskRequest struct {
	Question string     `json:"question" validate:"required"`
	Provider string     `json:"provider,omitempty"`
	Period   string     `json:"period,omitempty"`
	Limit    int        `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	Mode     SearchMode `json:"mode,omitempty"`
}

// SearchQuery returns the retrieval half of the request.
func (r AskRequest) SearchQuery() SearchQuery {
	return SearchQuery{
		Query:  r.Question,
		Limit:  r.Limit,
		Mode:   r.Mode,
		Filter: PeriodFilter(r.Period),
	}
}

// SummarizeRequest asks for a summary of a stored document or raw text.
type SummarizeRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Provider   string `json:"provider,omitempty"`
}
