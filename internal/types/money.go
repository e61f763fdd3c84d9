// README: Money helpers shared by pricing and rides (two-decimal amounts).
package types

import "math"

// Round2 rounds an amount half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
