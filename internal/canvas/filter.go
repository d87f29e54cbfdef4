package canvas

import (
	"math"

	"github.com/disintegration/imaging"
)

// Lanczos4 is a windowed-sinc filter with a support of 4 pixels on each side
// (an 8x8 neighbourhood in two dimensions). imaging ships Lanczos with a
// support of 3; the wider window matches the sharper kernel video tools use
// for stills.
var Lanczos4 = imaging.ResampleFilter{
	Support: 4.0,
	Kernel: func(x float64) float64 {
		x = math.Abs(x)
		if x < 4.0 {
			return sinc(x) * sinc(x/4.0)
		}
		return 0
	},
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}
