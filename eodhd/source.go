// Package eodhd fetches daily crypto prices from EOD Historical Data.
package eodhd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/cointax"
	"github.com/etnz/cointax/date"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the root of the EODHD API.
const DefaultBaseURL = "https://eodhd.com/api"

// Source is a cointax.PriceSource backed by the EODHD end of day API.
//
// Crypto pairs are quoted as "<ASSET>-<FIAT>.CC", the daily close is the price of
// the day.
type Source struct {
	APIKey  string
	Fiat    cointax.Asset
	BaseURL string
	Client  *http.Client
	Limiter *rate.Limiter // nil means unlimited
	Logger  *slog.Logger
}

// NewSource returns a Source with a daily disk cache and a rate limit of 10 requests
// per second.
func NewSource(apiKey string, fiat cointax.Asset, logger *slog.Logger) *Source {
	return &Source{
		APIKey:  apiKey,
		Fiat:    fiat,
		BaseURL: DefaultBaseURL,
		Client:  newDailyCachingClient("", logger),
		Limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		Logger:  logger,
	}
}

// ticker returns the EODHD ticker of asset.
func (s *Source) ticker(asset cointax.Asset) string {
	return fmt.Sprintf("%s-%s.CC", asset, s.Fiat)
}

// eod returns the raw end of day payload of asset between from and to included.
func (s *Source) eod(ctx context.Context, asset cointax.Asset, from, to date.Date) (any, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	addr := fmt.Sprintf("%s/eod/%s?fmt=json&api_token=%s&from=%s&to=%s", base, url.PathEscape(s.ticker(asset)), url.QueryEscape(s.APIKey), from, to)
	var content any
	if err := jwget(ctx, client, addr, &content); err != nil {
		return nil, err
	}
	return content, nil
}

// Fetch implements cointax.PriceSource.
func (s *Source) Fetch(ctx context.Context, asset cointax.Asset, day date.Date) (decimal.Decimal, error) {
	content, err := s.eod(ctx, asset, day, day)
	if err != nil {
		return decimal.Zero, err
	}
	if list, ok := content.([]any); !ok || len(list) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", cointax.ErrPriceNotFound, s.ticker(asset), day)
	}
	jval, err := jsonpath.Get("$[0].close", content)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error parsing %s close: %w", s.ticker(asset), err)
	}
	// jsonpath may return a list of one answer or the answer itself.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	val, ok := jval.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("error parsing %s close: not a float %v", s.ticker(asset), jval)
	}
	return decimal.NewFromFloat(val), nil
}

// FetchRange returns every daily close of asset between from and to included.
func (s *Source) FetchRange(ctx context.Context, asset cointax.Asset, from, to date.Date) ([]date.Point[decimal.Decimal], error) {
	content, err := s.eod(ctx, asset, from, to)
	if err != nil {
		return nil, err
	}
	days, err := jsonpath.Get("$[*].date", content)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s dates: %w", s.ticker(asset), err)
	}
	closes, err := jsonpath.Get("$[*].close", content)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s closes: %w", s.ticker(asset), err)
	}
	dl, _ := days.([]any)
	cl, _ := closes.([]any)
	if len(dl) != len(cl) {
		return nil, fmt.Errorf("error parsing %s: %d dates for %d closes", s.ticker(asset), len(dl), len(cl))
	}
	points := make([]date.Point[decimal.Decimal], 0, len(dl))
	for i := range dl {
		str, _ := dl[i].(string)
		day, err := date.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("error parsing %s date %v: %w", s.ticker(asset), dl[i], err)
		}
		val, ok := cl[i].(float64)
		if !ok {
			return nil, fmt.Errorf("error parsing %s close on %s: not a float %v", s.ticker(asset), day, cl[i])
		}
		points = append(points, date.Point[decimal.Decimal]{Day: day, Value: decimal.NewFromFloat(val)})
	}
	return points, nil
}

var _ cointax.PriceSource = (*Source)(nil)
