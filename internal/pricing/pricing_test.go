package pricing

import (
	"math"
	"testing"

	"options-lab/internal/models"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNormalCDF_KnownValues(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1, 0.8413447461},
		{-1, 0.1586552539},
		{1.96, 0.9750021049},
		{-2.5, 0.0062096653},
		{3, 0.9986501020},
	}

	for _, tt := range tests {
		if got := NormalCDF(tt.x); !almostEqual(got, tt.want, 1e-7) {
			t.Errorf("NormalCDF(%v) = %.10f, want %.10f", tt.x, got, tt.want)
		}
	}
}

func TestNormalCDF_Zero(t *testing.T) {
	if got := NormalCDF(0); got != 0.5 {
		t.Fatalf("NormalCDF(0) = %v, want exactly 0.5", got)
	}
}

func TestNormalCDF_Saturates(t *testing.T) {
	if got := NormalCDF(math.Inf(1)); got != 1 {
		t.Errorf("NormalCDF(+Inf) = %v, want 1", got)
	}
	if got := NormalCDF(math.Inf(-1)); got != 0 {
		t.Errorf("NormalCDF(-Inf) = %v, want 0", got)
	}
	if got := NormalCDF(40); got != 1 {
		t.Errorf("NormalCDF(40) = %v, want 1", got)
	}
	if got := NormalCDF(-40); got != 0 {
		t.Errorf("NormalCDF(-40) = %v, want 0", got)
	}
	if !math.IsNaN(NormalCDF(math.NaN())) {
		t.Error("NormalCDF(NaN) should be NaN")
	}
}

func TestNormalPDF(t *testing.T) {
	if got := NormalPDF(0); !almostEqual(got, 0.3989422804, 1e-10) {
		t.Errorf("NormalPDF(0) = %v", got)
	}
	if NormalPDF(1.3) != NormalPDF(-1.3) {
		t.Error("NormalPDF should be even")
	}
}

func TestPrice_ReferenceCase(t *testing.T) {
	// S=100, K=100, r=5%, sigma=20%, T=1y.
	call := Price(100, 100, 1, 0.05, 0.2, models.Call)
	put := Price(100, 100, 1, 0.05, 0.2, models.Put)

	if !almostEqual(call, 10.450583572185565, 1e-4) {
		t.Errorf("call price = %v, want ~10.4506", call)
	}
	if !almostEqual(put, 5.573526022256971, 1e-4) {
		t.Errorf("put price = %v, want ~5.5735", put)
	}
}

func TestPrice_PutCallParity(t *testing.T) {
	cases := []struct{ s, k, years, r, sigma float64 }{
		{100, 100, 45.0 / 365.0, 0.03, 0.25},
		{150, 100, 1, 0.05, 0.4},
		{80, 120, 0.1, 0.0, 0.9},
		{581.39, 600, 3.0 / 365.0, 0.045, 0.18},
	}

	for _, c := range cases {
		call := Price(c.s, c.k, c.years, c.r, c.sigma, models.Call)
		put := Price(c.s, c.k, c.years, c.r, c.sigma, models.Put)
		lhs := call - put
		rhs := c.s - c.k*math.Exp(-c.r*c.years)
		if !almostEqual(lhs, rhs, 1e-6) {
			t.Errorf("parity violated for %+v: C-P=%v, S-Ke^-rT=%v", c, lhs, rhs)
		}
	}
}

func TestPrice_ExpiredIsIntrinsic(t *testing.T) {
	tests := []struct {
		s, k float64
		typ  models.OptionType
		want float64
	}{
		{110, 100, models.Call, 10},
		{90, 100, models.Call, 0},
		{90, 100, models.Put, 10},
		{110, 100, models.Put, 0},
	}

	for _, tt := range tests {
		if got := Price(tt.s, tt.k, 0, 0.05, 0.3, tt.typ); got != tt.want {
			t.Errorf("Price(%v,%v,T=0,%s) = %v, want %v", tt.s, tt.k, tt.typ, got, tt.want)
		}
		if got := Price(tt.s, tt.k, 0.5, 0.05, 0, tt.typ); got != tt.want {
			t.Errorf("Price(%v,%v,sigma=0,%s) = %v, want %v", tt.s, tt.k, tt.typ, got, tt.want)
		}
	}
}

func TestCalculate_DegenerateGreeks(t *testing.T) {
	itmCall := Calculate(120, 100, 0, 0.05, 0.3, models.Call)
	if itmCall.Delta != 1 || itmCall.Price != 20 {
		t.Errorf("expired ITM call = %+v", itmCall)
	}
	if itmCall.Gamma != 0 || itmCall.Theta != 0 || itmCall.Vega != 0 || itmCall.Rho != 0 {
		t.Errorf("expired call should have zero gamma/theta/vega/rho: %+v", itmCall)
	}

	otmCall := Calculate(80, 100, -0.1, 0.05, 0.3, models.Call)
	if otmCall.Delta != 0 || otmCall.Price != 0 {
		t.Errorf("expired OTM call = %+v", otmCall)
	}

	itmPut := Calculate(80, 100, 0.5, 0.05, 0, models.Put)
	if itmPut.Delta != -1 || itmPut.Price != 20 {
		t.Errorf("zero-vol ITM put = %+v", itmPut)
	}

	otmPut := Calculate(120, 100, 0, 0.05, 0.3, models.Put)
	if otmPut.Delta != 0 {
		t.Errorf("expired OTM put delta = %v, want 0", otmPut.Delta)
	}
}

func TestCalculate_DeltaBounds(t *testing.T) {
	deepITM := Calculate(150, 100, 30.0/365.0, 0.05, 0.2, models.Call)
	if !almostEqual(deepITM.Delta, 1, 1e-3) {
		t.Errorf("deep ITM call delta = %v, want ~1", deepITM.Delta)
	}

	deepOTM := Calculate(50, 100, 30.0/365.0, 0.05, 0.2, models.Call)
	if !almostEqual(deepOTM.Delta, 0, 1e-3) {
		t.Errorf("deep OTM call delta = %v, want ~0", deepOTM.Delta)
	}

	put := Calculate(150, 100, 30.0/365.0, 0.05, 0.2, models.Put)
	if !almostEqual(put.Delta, 0, 1e-3) {
		t.Errorf("deep OTM put delta = %v, want ~0", put.Delta)
	}
}

func TestCalculate_GammaPeaksNearStrike(t *testing.T) {
	atm := Calculate(100, 100, 30.0/365.0, 0.05, 0.25, models.Call).Gamma
	below := Calculate(85, 100, 30.0/365.0, 0.05, 0.25, models.Call).Gamma
	above := Calculate(115, 100, 30.0/365.0, 0.05, 0.25, models.Call).Gamma

	if atm <= below || atm <= above {
		t.Fatalf("gamma should peak near the strike: below=%v atm=%v above=%v", below, atm, above)
	}

	putGamma := Calculate(100, 100, 30.0/365.0, 0.05, 0.25, models.Put).Gamma
	if putGamma != atm {
		t.Errorf("call and put gamma differ: %v vs %v", atm, putGamma)
	}
}

func TestCalculate_Scaling(t *testing.T) {
	s, k, years, r, sigma := 100.0, 100.0, 1.0, 0.05, 0.2
	g := Calculate(s, k, years, r, sigma, models.Call)

	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*years) / (sigma * math.Sqrt(years))
	d2 := d1 - sigma*math.Sqrt(years)

	rawVega := s * math.Sqrt(years) * NormalPDF(d1)
	if !almostEqual(g.Vega, rawVega/100, 1e-12) {
		t.Errorf("vega = %v, want %v", g.Vega, rawVega/100)
	}

	rawTheta := -s*NormalPDF(d1)*sigma/(2*math.Sqrt(years)) - r*k*math.Exp(-r*years)*NormalCDF(d2)
	if !almostEqual(g.Theta, rawTheta/365, 1e-12) {
		t.Errorf("theta = %v, want %v", g.Theta, rawTheta/365)
	}

	rawRho := k * years * math.Exp(-r*years) * NormalCDF(d2)
	if !almostEqual(g.Rho, rawRho/100, 1e-12) {
		t.Errorf("rho = %v, want %v", g.Rho, rawRho/100)
	}

	// Vega reads as the price change for one volatility point.
	bumped := Price(s, k, years, r, sigma+0.01, models.Call)
	if !almostEqual(bumped-g.Price, g.Vega, 1e-3) {
		t.Errorf("1pt vol bump moved price by %v, vega says %v", bumped-g.Price, g.Vega)
	}
}

func TestCalculate_PriceMatchesPrice(t *testing.T) {
	for _, typ := range []models.OptionType{models.Call, models.Put} {
		g := Calculate(97, 105, 0.25, 0.04, 0.35, typ)
		p := Price(97, 105, 0.25, 0.04, 0.35, typ)
		if g.Price != p {
			t.Errorf("%s: Calculate price %v != Price %v", typ, g.Price, p)
		}
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	a := Calculate(101.5, 99, 0.2, 0.03, 0.41, models.Put)
	b := Calculate(101.5, 99, 0.2, 0.03, 0.41, models.Put)
	if a != b {
		t.Fatalf("repeated calls differ: %+v vs %+v", a, b)
	}
}

func TestPrice_MalformedPropagatesNaN(t *testing.T) {
	if got := Price(-100, 100, 1, 0.05, 0.2, models.Call); !math.IsNaN(got) {
		t.Errorf("negative spot should give NaN, got %v", got)
	}
}
