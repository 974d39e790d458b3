// Package renderer formats evaluations as markdown reports.
package renderer

import (
	"bytes"
	"fmt"

	"github.com/etnz/cointax"
	md "github.com/nao1215/markdown"
)

// Options select the part of an evaluation to render.
type Options struct {
	Year  int           // zero is every year
	Depot cointax.Depot // empty is every depot
}

func (o Options) match(depot cointax.Depot, year int) bool {
	return (o.Year == 0 || o.Year == year) && (o.Depot == "" || o.Depot == depot)
}

// SummaryMarkdown renders the tax year summaries of ev.
func SummaryMarkdown(ev *cointax.Evaluation, opts Options) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	rs := ev.Rules
	doc.H1("Tax Summary")
	doc.PlainText(fmt.Sprintf("Rules %q: %s, %s, holding period %s, amounts in %s.", rs.Name, rs.Policy, rs.Mode, rs.HoldingPeriod, rs.Fiat))

	for _, s := range ev.Summaries {
		if !opts.match(s.Depot, s.Year) {
			continue
		}
		doc.H2(fmt.Sprintf("%d %s", s.Year, s.Depot))

		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight, md.AlignRight, md.AlignRight},
			Header:    []string{"Category", "Count", "Proceeds", "Cost", "Fees", "Gain / Income"},
		}
		for _, t := range s.Categories {
			if t.Count == 0 {
				continue
			}
			table.Rows = append(table.Rows, []string{
				t.Category.Title(),
				fmt.Sprint(t.Count),
				t.Proceeds.String(),
				t.Cost.String(),
				t.Fees.String(),
				t.Value.SignedString(),
			})
		}
		if len(table.Rows) > 0 {
			doc.Table(table)
		} else {
			doc.PlainText("No taxable event.")
			doc.PlainText("")
		}

		doc.Table(md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
			Header:    []string{md.Bold("Taxable"), md.Bold(string(rs.Fiat))},
			Rows: [][]string{
				{"Private sales" + exempt(s.PrivateSaleExempt), s.TaxablePrivateSales.SignedString()},
				{"Other income" + exempt(s.OtherIncomeExempt), s.TaxableOtherIncome.SignedString()},
				{"Capital income", s.TaxableCapitalIncome.SignedString()},
			},
		})

		if !s.CapitalGains.IsZero() || !s.CapitalLosses.IsZero() || !s.CapitalLossCarriedIn.IsZero() {
			doc.Table(md.TableSet{
				Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
				Header:    []string{"Capital Income", ""},
				Rows: [][]string{
					{"Gains", s.CapitalGains.String()},
					{"Losses", s.CapitalLosses.String()},
					{"Losses carried in", s.CapitalLossCarriedIn.String()},
					{"Losses offset", s.CapitalLossOffset.String()},
					{"Losses carried forward", s.CapitalLossCarriedForward.String()},
				},
			})
		}

		unrealized := s.Unrealized.SignedString()
		if s.UnrealizedIncomplete {
			unrealized += " (incomplete)"
		}
		doc.PlainText(fmt.Sprintf("Unrealized gain at year close: %s", unrealized))
		if s.Incomplete > 0 {
			doc.PlainText(fmt.Sprintf("%d records have a missing price and count as zero.", s.Incomplete))
		}
	}

	renderProblems(doc, ev, opts)
	return doc.String()
}

func exempt(b bool) string {
	if b {
		return " (exempt)"
	}
	return ""
}

// renderProblems lists the aborted depots and the missing prices.
func renderProblems(doc *md.Markdown, ev *cointax.Evaluation, opts Options) {
	var failures []string
	for _, f := range ev.Failures {
		if opts.Depot == "" || opts.Depot == f.Depot {
			failures = append(failures, fmt.Sprintf("%s: %v", f.Depot, f.Err))
		}
	}
	if len(failures) > 0 {
		doc.H2("Aborted Depots")
		doc.BulletList(failures...)
	}

	var gaps []string
	for _, g := range ev.Gaps {
		if opts.Year != 0 && opts.Year != g.Day.Year() {
			continue
		}
		line := fmt.Sprintf("%s on %s", g.Asset, g.Day)
		if g.OperationID != "" {
			line += fmt.Sprintf(" (operation %s)", g.OperationID)
		}
		gaps = append(gaps, line)
	}
	if len(gaps) > 0 {
		doc.H2("Missing Prices")
		doc.BulletList(gaps...)
	}
}
