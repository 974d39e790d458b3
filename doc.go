// Package cointax computes realized and unrealized taxable gains of crypto assets
// held across several depots.
//
// A Ledger of Operations is processed in chronological order. Acquisitions create
// Lots in the Inventory of their (depot, asset) pair, disposals consume them under a
// ConsumptionPolicy and produce MatchedDisposals. Every disposal and every income is
// categorized by a RuleSet into a TaxCategory, and the records are aggregated per tax
// year and depot into TaxYearSummaries, together with the unrealized gain of the lots
// left at the close of each year.
//
// Fiat values come from a PriceResolver: a shared PriceCache, an optional external
// PriceSource and a linear interpolation for the days without a quote.
//
// The main entry point is Evaluate. The ctax command is built on top of it.
package cointax
