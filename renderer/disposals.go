package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/etnz/cointax"
	md "github.com/nao1215/markdown"
)

const timeLayout = "2006-01-02 15:04"

// DisposalsMarkdown renders the matched disposals of ev, one row per lot fragment.
func DisposalsMarkdown(ev *cointax.Evaluation, opts Options) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Disposals")
	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft, md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignLeft, md.AlignLeft,
			md.AlignRight, md.AlignRight, md.AlignRight, md.AlignRight,
		},
		Header: []string{"Disposed", "Depot", "Asset", "Quantity", "Acquired", "Lot", "Proceeds", "Cost", "Fee", "Gain"},
	}
	for _, d := range ev.Disposals {
		if !opts.match(d.Depot, d.Disposed.Year()) {
			continue
		}
		gain := d.Gain().SignedString()
		if d.Status == cointax.ValuationIncomplete {
			gain += " ?"
		}
		table.Rows = append(table.Rows, []string{
			d.Disposed.Format(timeLayout),
			string(d.Depot),
			string(d.Asset),
			d.Quantity.String(),
			d.Acquired.Format(timeLayout),
			d.LotID,
			d.Proceeds.String(),
			d.Cost.String(),
			d.Fee.String(),
			gain,
		})
	}
	if len(table.Rows) == 0 {
		doc.PlainText("No disposal.")
		return doc.String()
	}
	doc.Table(table)
	return doc.String()
}

// RecordsMarkdown renders every categorized record of ev, grouped by category. It is
// the audit trail behind the summaries.
func RecordsMarkdown(ev *cointax.Evaluation, opts Options) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Tax Records")
	for _, cat := range cointax.TaxCategories() {
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignLeft, md.AlignRight},
			Header:    []string{"Time", "Operation", "Depot", "Kind", "Quantity", "Acquired", "Value"},
		}
		for _, r := range ev.Records {
			if r.Category != cat || !opts.match(r.Depot, r.Year) {
				continue
			}
			value := r.Value.SignedString()
			if r.Status == cointax.ValuationIncomplete {
				value += " ?"
			}
			table.Rows = append(table.Rows, []string{
				r.Time.Format(timeLayout),
				r.OperationID,
				string(r.Depot),
				r.Kind.String(),
				fmt.Sprintf("%s %s", r.Quantity, r.Asset),
				formatOptionalTime(r.Acquired),
				value,
			})
		}
		if len(table.Rows) == 0 {
			continue
		}
		doc.H2(cat.Title())
		doc.Table(table)
	}
	return doc.String()
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
