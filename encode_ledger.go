package cointax

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// commandType identifies the kind of line in a ledger file.
type commandType string

const (
	cmdAsset     commandType = "asset"
	cmdOperation commandType = "op"
)

// DecodeLedger decodes a ledger from a stream of JSONL data.
//
// Each line is either an asset declaration:
//
//	{"command":"asset","symbol":"BTC","precision":8}
//
// or an operation:
//
//	{"command":"op","id":"t1","time":"2024-01-02T10:00:00Z","depot":"kraken","asset":"BTC","quantity":0.5,"kind":"buy","fiat":21000}
//
// Lines are appended in order, so the line number is the tie breaker of operations
// sharing a timestamp.
func DecodeLedger(r io.Reader) (*Ledger, error) {
	ledger := NewLedger()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}

		var identifier struct {
			Command commandType `json:"command"`
		}
		if err := json.Unmarshal(lineBytes, &identifier); err != nil {
			return nil, fmt.Errorf("line %d: could not identify command in %q: %w", lineNo, string(lineBytes), err)
		}

		switch identifier.Command {
		case cmdAsset:
			var info AssetInfo
			if err := json.Unmarshal(lineBytes, &info); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if err := ledger.Declare(info); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case cmdOperation:
			// Use a temporary type that has all possible fields.
			var temp struct {
				ID       string              `json:"id"`
				Time     time.Time           `json:"time"`
				Depot    Depot               `json:"depot"`
				Asset    Asset               `json:"asset"`
				Quantity Quantity            `json:"quantity"`
				Kind     OperationKind       `json:"kind"`
				Fiat     decimal.NullDecimal `json:"fiat"`
				Ref      string              `json:"ref"`
			}
			if err := json.Unmarshal(lineBytes, &temp); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			op := Operation{
				ID:        temp.ID,
				Time:      temp.Time,
				Depot:     temp.Depot,
				Asset:     temp.Asset,
				Quantity:  temp.Quantity,
				Kind:      temp.Kind,
				FiatValue: temp.Fiat,
				Ref:       temp.Ref,
			}
			if err := ledger.Append(op); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		default:
			return nil, fmt.Errorf("line %d: unknown command %q", lineNo, identifier.Command)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := ledger.Check(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// EncodeLedger writes the ledger as JSONL: declarations first, then operations in
// processing order.
func EncodeLedger(w io.Writer, ledger *Ledger) error {
	enc := json.NewEncoder(w)
	for _, info := range ledger.Assets() {
		var line jsonObjectWriter
		line.Append("command", cmdAsset)
		line.Append("symbol", info.Symbol)
		line.Append("precision", info.Precision)
		if err := enc.Encode(&line); err != nil {
			return err
		}
	}
	for op := range ledger.Operations() {
		if err := enc.Encode(op); err != nil {
			return fmt.Errorf("could not encode operation %s: %w", op.ID, err)
		}
	}
	return nil
}
