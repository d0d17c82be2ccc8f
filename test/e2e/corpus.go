// Package e2e runs the ingest, search and answer pipeline over a generated
// corpus of quarterly filings.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kessan/internal/models"
)

// Filing is one generated quarterly report.
type Filing struct {
	ID      string
	Company string
	Period  string
	Title   string
	Content string
}

// QueryTestCase is a question whose answer lives in ExpectedIDs.
type QueryTestCase struct {
	Query       string
	Period      string
	ExpectedIDs []string
	Description string
}

// Corpus holds the filings and the queries run against them.
type Corpus struct {
	Filings   []Filing
	TestCases []QueryTestCase
}

var companies = []string{"Acme", "Borealis", "Cinder", "Dynamo", "Everest"}

var quarters = []string{"Q1_2024", "Q2_2024", "Q3_2024", "Q4_2024"}

// topics pairs a distinctive phrase with the disclosure built around it.
// Each filing gets one topic, so every phrase appears in exactly one filing.
var topics = []struct {
	phrase string
	text   string
}{
	{"wafer shipments", "Wafer shipments rose as foundry customers rebuilt inventory."},
	{"goodwill impairment", "A goodwill impairment was recorded against the legacy storage unit."},
	{"share repurchase", "The board approved a share repurchase program of 2 billion dollars."},
	{"deferred revenue", "Deferred revenue increased on multi-year subscription renewals."},
	{"warranty reserve", "The warranty reserve was raised after a recall of thermal modules."},
	{"convertible notes", "Convertible notes due 2027 were partially redeemed for cash."},
	{"lease liabilities", "Lease liabilities grew with the new Austin campus."},
	{"hedging losses", "Hedging losses on euro contracts reduced other income."},
	{"restructuring charges", "Restructuring charges covered the closure of two plants."},
	{"dividend increase", "A dividend increase of eight percent was declared."},
	{"inventory writedown", "An inventory writedown hit gross margin for older accelerators."},
	{"litigation settlement", "A litigation settlement with a former supplier was paid in full."},
	{"pension contributions", "Pension contributions were accelerated ahead of rate changes."},
	{"capital expenditures", "Capital expenditures doubled on new packaging capacity."},
	{"tax valuation allowance", "A tax valuation allowance was released in Ireland."},
	{"customer concentration", "Customer concentration rose as the largest buyer reached 31 percent of sales."},
	{"backlog growth", "Backlog growth reflected hyperscaler orders through next year."},
	{"foreign exchange headwinds", "Foreign exchange headwinds trimmed reported sales by three points."},
	{"stock compensation", "Stock compensation expense climbed with the new retention grants."},
	{"credit facility", "The revolving credit facility was extended to 2029."},
}

// BuildCorpus returns one filing per company and quarter.
func BuildCorpus() *Corpus {
	var filings []Filing
	for i, company := range companies {
		for j, quarter := range quarters {
			n := i*len(quarters) + j
			topic := topics[n%len(topics)]
			filings = append(filings, Filing{
				ID:      fmt.Sprintf("%s_%s", strings.ToUpper(company), quarter),
				Company: company,
				Period:  models.ParsePeriod(quarter),
				Title:   fmt.Sprintf("%s %s Quarterly Report", company, strings.ReplaceAll(quarter, "_", " ")),
				Content: fmt.Sprintf("%s quarterly results.\n\n%s Management discussed %s with analysts.", company, topic.text, topic.phrase),
			})
		}
	}
	return &Corpus{Filings: filings, TestCases: buildQueryTestCases(filings)}
}

func buildQueryTestCases(filings []Filing) []QueryTestCase {
	var cases []QueryTestCase
	for _, topic := range topics {
		for _, f := range filings {
			if !strings.Contains(f.Content, topic.phrase) {
				continue
			}
			cases = append(cases, QueryTestCase{
				Query:       topic.phrase,
				ExpectedIDs: []string{f.ID},
				Description: fmt.Sprintf("%s in %s", topic.phrase, f.ID),
			}, QueryTestCase{
				Query:       topic.phrase,
				Period:      f.Period,
				ExpectedIDs: []string{f.ID},
				Description: fmt.Sprintf("%s restricted to %s", topic.phrase, f.Period),
			})
			break
		}
	}
	return cases
}

// ToDocumentInputs converts the filings for IngestText.
func (c *Corpus) ToDocumentInputs() []*models.DocumentInput {
	out := make([]*models.DocumentInput, len(c.Filings))
	for i, f := range c.Filings {
		out[i] = &models.DocumentInput{
			ID:      f.ID,
			Title:   f.Title,
			Content: f.Content,
		}
	}
	return out
}
