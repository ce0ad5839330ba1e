package kernels

import "math"

// Rational approximation of the prolate spheroidal wave function for
// support m=6 and α=1 (Schwab 1984), in two segments split at ν=0.75.
var (
	grdsfP = [2][5]float64{
		{8.203343e-2, -3.644705e-1, 6.278660e-1, -5.335581e-1, 2.312756e-1},
		{4.028559e-3, -3.697768e-2, 1.021332e-1, -1.201436e-1, 6.412774e-2},
	}
	grdsfQ = [2][3]float64{
		{1.0000000e0, 8.212018e-1, 2.078043e-1},
		{1.0000000e0, 9.599102e-1, 2.918724e-1},
	}
)

// spheroidal evaluates the spheroidal function ψ(ν) for |ν| ≤ 1 and returns 0 outside.
func spheroidal(nu float64) float64 {
	nu = math.Abs(nu)
	if nu > 1 {
		return 0
	}
	part, nuend := 0, 0.75
	if nu > 0.75 {
		part, nuend = 1, 1.0
	}
	delnusq := nu*nu - nuend*nuend

	top, pow := 0.0, 1.0
	for _, p := range grdsfP[part] {
		top += p * pow
		pow *= delnusq
	}
	bot, pow := 0.0, 1.0
	for _, q := range grdsfQ[part] {
		bot += q * pow
		pow *= delnusq
	}
	if bot <= 0 {
		return 0
	}
	return top / bot
}

// Taper returns the image-plane anti-aliasing function (1-ν²)ψ(ν) at the
// normalised distance ν from the grid centre (ν=1 at the grid edge).
func Taper(nu float64) float64 {
	if math.Abs(nu) >= 1 {
		return 0
	}
	return (1 - nu*nu) * spheroidal(nu)
}

// taperAxis samples the taper along one axis of an n-pixel grid whose centre is pixel n/2.
// With antiAliasing disabled every sample is one.
func taperAxis(n int, antiAliasing bool) []float64 {
	out := make([]float64, n)
	half := float64(n / 2)
	for i := range out {
		if !antiAliasing {
			out[i] = 1
			continue
		}
		out[i] = Taper((float64(i) - half) / half)
	}
	return out
}
