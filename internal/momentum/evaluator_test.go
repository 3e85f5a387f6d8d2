package momentum

import (
	"strings"
	"testing"

	"stock-scannerv1/internal/model"
)

func sample(price float64, volume int64, changePct, relVol float64) *model.Sample {
	return &model.Sample{
		Symbol:    "TEST",
		Price:     price,
		Volume:    volume,
		ChangePct: changePct,
		RelVolume: relVol,
	}
}

func TestEvaluate_Checks(t *testing.T) {
	th := Thresholds{
		MaxPrice:     500,
		MinPrice:     5,
		MinVolume:    100000,
		MinChangePct: 3,
		MinRelVolume: 1.5,
	}

	tests := []struct {
		name       string
		s          *model.Sample
		pass       bool
		reasonPart string
	}{
		{"all pass", sample(50, 200000, 4.2, 2.0), true, ""},
		{"negative change passes on magnitude", sample(50, 200000, -4.2, 2.0), true, ""},
		{"price above max", sample(600, 200000, 4.2, 2.0), false, "above max"},
		{"price below min", sample(2, 200000, 4.2, 2.0), false, "below min"},
		{"thin volume", sample(50, 5000, 4.2, 2.0), false, "volume 5000"},
		{"flat change", sample(50, 200000, 0.5, 2.0), false, "change"},
		{"low relative volume", sample(50, 200000, 4.2, 0.8), false, "relative volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.s, th)
			if v.Pass != tt.pass {
				t.Fatalf("Pass=%v, want %v (reason %q)", v.Pass, tt.pass, v.Reason)
			}
			if !tt.pass && !strings.Contains(v.Reason, tt.reasonPart) {
				t.Errorf("Reason=%q, want substring %q", v.Reason, tt.reasonPart)
			}
		})
	}
}

func TestEvaluate_FirstFailingCheckWins(t *testing.T) {
	th := Thresholds{MaxPrice: 100, MinVolume: 100000}
	// Fails both price ceiling and volume — price is checked first.
	v := Evaluate(sample(200, 10, 0, 0), th)
	if v.Pass {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(v.Reason, "above max") {
		t.Errorf("Reason=%q, want the price-ceiling reason first", v.Reason)
	}
}

func TestEvaluate_ZeroThresholdsDisableChecks(t *testing.T) {
	v := Evaluate(sample(0.5, 0, 0, 0), Thresholds{})
	if !v.Pass {
		t.Errorf("zero thresholds rejected: %q", v.Reason)
	}
}
