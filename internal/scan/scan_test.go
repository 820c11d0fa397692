package scan

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"options-lab/internal/models"
	"options-lab/internal/templates"
)

var evalDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func market() models.MarketState {
	return models.MarketState{UnderlyingPrice: 100, RiskFreeRate: 0.05, EvaluationDate: evalDate}
}

func newScanner(t *testing.T, buf *bytes.Buffer) *Scanner {
	t.Helper()
	catalog, err := templates.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return New(catalog, 4, zerolog.New(zerolog.SyncWriter(buf)))
}

func theoretical() Request {
	return Request{Market: market(), Width: 5, Volatility: 0.25, DaysToExpiry: 30}
}

func assertRanked(t *testing.T, results []Result) {
	t.Helper()
	for i := 1; i < len(results); i++ {
		a, b := results[i-1], results[i]
		if a.Err == "" && b.Err == "" && cmp.Compare(Score(a.Metrics), Score(b.Metrics)) < 0 {
			t.Errorf("%s ranked above %s with a lower score", a.Template.ID, b.Template.ID)
		}
		if a.Err != "" && b.Err == "" {
			t.Errorf("failed %s ranked above %s", a.Template.ID, b.Template.ID)
		}
	}
}

func TestRun_Theoretical(t *testing.T) {
	var buf bytes.Buffer
	results, err := newScanner(t, &buf).Run(context.Background(), theoretical())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 15 {
		t.Fatalf("got %d results, want 15", len(results))
	}
	assertRanked(t, results)

	seenLimitedLoss := false
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.Err != "" {
			t.Errorf("%s failed: %s", r.Template.ID, r.Err)
		}
		if len(r.Legs) != len(r.Template.Legs) {
			t.Errorf("%s has %d legs, want %d", r.Template.ID, len(r.Legs), len(r.Template.Legs))
		}
		if !r.Metrics.UnlimitedLoss() {
			seenLimitedLoss = true
		} else if seenLimitedLoss {
			t.Errorf("unlimited-loss %s ranked above a limited-loss template", r.Template.ID)
		}
	}

	for _, r := range results {
		if r.Template.ID == templates.IronCondor {
			if !r.Metrics.IsCredit || r.RewardRisk <= 0 || r.PoP <= 0 || r.PoP >= 1 {
				t.Errorf("iron condor result = %+v", r)
			}
			if r.Legs[0].Strike != 90 || r.Legs[3].Strike != 110 {
				t.Errorf("iron condor strikes = %v..%v, want 90..110", r.Legs[0].Strike, r.Legs[3].Strike)
			}
		}
	}
}

func TestRun_OutlookFilter(t *testing.T) {
	tests := map[templates.Outlook]int{
		templates.Neutral:  6,
		templates.Bullish:  4,
		templates.Bearish:  3,
		templates.Volatile: 2,
		"":                 15,
	}
	for outlook, want := range tests {
		var buf bytes.Buffer
		req := theoretical()
		req.Outlook = outlook
		results, err := newScanner(t, &buf).Run(context.Background(), req)
		if err != nil {
			t.Fatalf("Run(%q) error = %v", outlook, err)
		}
		if len(results) != want {
			t.Errorf("Run(%q) returned %d results, want %d", outlook, len(results), want)
		}
		for _, r := range results {
			if outlook != "" && r.Template.Outlook != outlook {
				t.Errorf("Run(%q) returned %s (%s)", outlook, r.Template.ID, r.Template.Outlook)
			}
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newScanner(t, &buf).Run(ctx, theoretical()); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

// singleExpiryChain quotes 80..120 for one expiry only, so the two-expiry
// templates cannot be bound.
func singleExpiryChain() *models.OptionChain {
	exp := evalDate.AddDate(0, 0, 30)
	c := &models.OptionChain{Symbol: "SPY", SpotPrice: 100, AsOf: evalDate}
	for k := 80.0; k <= 120; k += 5 {
		call := math.Max(100-k, 0) + 1
		put := math.Max(k-100, 0) + 1
		c.Quotes = append(c.Quotes,
			models.Quote{Type: models.Call, Strike: k, Bid: call - 0.1, Ask: call + 0.1, ImpliedVolatility: 0.25, Expiration: exp},
			models.Quote{Type: models.Put, Strike: k, Bid: put - 0.1, Ask: put + 0.1, ImpliedVolatility: 0.25, Expiration: exp},
		)
	}
	return c
}

func TestRun_Chain(t *testing.T) {
	var buf bytes.Buffer
	req := theoretical()
	req.Chain = singleExpiryChain()

	results, err := newScanner(t, &buf).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertRanked(t, results)

	failed := map[templates.ID]bool{}
	for _, r := range results[len(results)-2:] {
		failed[r.Template.ID] = r.Err != ""
	}
	if !failed[templates.CalendarSpread] || !failed[templates.DiagonalSpread] {
		t.Errorf("two-expiry templates should fail last, got %v", failed)
	}

	for _, r := range results {
		if r.Template.ID == templates.Straddle {
			// Both legs bound at the 100 strike, mid price 1 each.
			if math.Abs(r.Metrics.NetPremium+200) > 1e-9 {
				t.Errorf("straddle net premium = %v, want -200", r.Metrics.NetPremium)
			}
		}
	}

	var scan map[string]interface{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var line map[string]interface{}
		if json.Unmarshal(sc.Bytes(), &line) == nil && line["event"] == "scan" {
			scan = line
		}
	}
	if scan == nil || scan["templates"] != float64(15) || scan["failed"] != float64(2) {
		t.Errorf("scan log line = %v", scan)
	}
}

func TestRun_SmallSpot(t *testing.T) {
	var buf bytes.Buffer
	req := theoretical()
	req.Market.UnderlyingPrice = 6 // centers at 5, so the lower wings resolve to 0 and -5

	results, err := newScanner(t, &buf).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 15 {
		t.Fatalf("got %d results, want 15", len(results))
	}
	assertRanked(t, results)

	errs := map[templates.ID]string{}
	for _, r := range results {
		errs[r.Template.ID] = r.Err
		if r.Err == "" && math.IsNaN(r.Metrics.NetPremium) {
			t.Errorf("%s evaluated to NaN", r.Template.ID)
		}
	}
	for _, id := range []templates.ID{templates.IronCondor, templates.BullPutSpread, templates.PutButterfly} {
		if errs[id] == "" {
			t.Errorf("%s should be skipped", id)
		}
	}
	if errs[templates.LongCall] != "" || errs[templates.Straddle] != "" {
		t.Errorf("center-strike templates failed: %v", errs)
	}
	if _, err := json.Marshal(results); err != nil {
		t.Errorf("results do not encode: %v", err)
	}
}

func TestRun_ChainWithNonPositiveStrike(t *testing.T) {
	var buf bytes.Buffer
	exp := evalDate.AddDate(0, 0, 35)
	req := theoretical()
	req.Market.UnderlyingPrice = 6
	req.Chain = &models.OptionChain{SpotPrice: 6, AsOf: evalDate}
	for _, k := range []float64{-5, 5, 10, 15} {
		req.Chain.Quotes = append(req.Chain.Quotes,
			models.Quote{Type: models.Call, Strike: k, Bid: 0.9, Ask: 1.1, ImpliedVolatility: 0.3, Expiration: exp},
			models.Quote{Type: models.Put, Strike: k, Bid: 0.9, Ask: 1.1, ImpliedVolatility: 0.3, Expiration: exp},
		)
	}

	results, err := newScanner(t, &buf).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertRanked(t, results)
	for _, r := range results {
		if r.Template.ID == templates.IronCondor && r.Err == "" {
			t.Errorf("iron condor bound to a negative strike: %+v", r.Legs)
		}
	}
	if _, err := json.Marshal(results); err != nil {
		t.Errorf("results do not encode: %v", err)
	}
}

func TestScore(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name string
		m    models.StrategyMetrics
		want float64
	}{
		{"unlimited loss", models.StrategyMetrics{MaxProfit: 500, MaxLoss: -inf}, -math.MaxFloat64},
		{"unlimited profit", models.StrategyMetrics{MaxProfit: inf, MaxLoss: -300}, math.MaxFloat64},
		{"defined risk", models.StrategyMetrics{MaxProfit: 200, MaxLoss: -300}, 200.0 / 300.0},
		{"certain loss", models.StrategyMetrics{MaxProfit: -150, MaxLoss: -150}, -1},
		{"cannot lose", models.StrategyMetrics{MaxProfit: 50, MaxLoss: 10}, math.MaxFloat64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.m); math.Abs(got-tt.want) > 1e-12 && got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_DefaultWorkers(t *testing.T) {
	catalog, _ := templates.NewCatalog()
	if s := New(catalog, 0, zerolog.Nop()); s.workers < 1 {
		t.Errorf("workers = %d", s.workers)
	}
}
