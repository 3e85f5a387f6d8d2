// Package momentum evaluates a single market sample against configured
// thresholds, producing a pass/fail verdict with the first failing reason.
// Pure functions — no state, no side effects.
package momentum

import (
	"fmt"
	"math"

	"stock-scannerv1/internal/model"
)

// Thresholds configures the momentum checks. A zero value disables the
// corresponding check.
type Thresholds struct {
	MaxPrice     float64 // reject above this price
	MinPrice     float64 // reject below this price
	MinVolume    int64   // reject below this share volume
	MinChangePct float64 // reject when |%change| is below this
	MinRelVolume float64 // reject when relative volume is below this
}

// Verdict is the evaluation outcome. Reason is set only on rejection and
// names the first failing check — evaluation order matters for the reason,
// not for the outcome.
type Verdict struct {
	Pass   bool
	Reason string
}

// Evaluate applies the thresholds to one sample. Checks run in a fixed
// order: price ceiling, price floor, volume, percent change, relative
// volume; the first failure wins.
func Evaluate(s *model.Sample, th Thresholds) Verdict {
	if th.MaxPrice > 0 && s.Price > th.MaxPrice {
		return reject("price %.2f above max %.2f", s.Price, th.MaxPrice)
	}
	if th.MinPrice > 0 && s.Price < th.MinPrice {
		return reject("price %.2f below min %.2f", s.Price, th.MinPrice)
	}
	if th.MinVolume > 0 && s.Volume < th.MinVolume {
		return reject("volume %d below min %d", s.Volume, th.MinVolume)
	}
	if th.MinChangePct > 0 && math.Abs(s.ChangePct) < th.MinChangePct {
		return reject("change %.2f%% below min %.2f%%", s.ChangePct, th.MinChangePct)
	}
	if th.MinRelVolume > 0 && s.RelVolume < th.MinRelVolume {
		return reject("relative volume %.2f below min %.2f", s.RelVolume, th.MinRelVolume)
	}
	return Verdict{Pass: true}
}

func reject(format string, args ...any) Verdict {
	return Verdict{Pass: false, Reason: fmt.Sprintf(format, args...)}
}
