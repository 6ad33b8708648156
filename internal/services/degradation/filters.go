package degradation

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"gocv.io/x/gocv"
)

const (
	// dustBlendWeight is the opacity of the dust overlay.
	dustBlendWeight = 0.3
	// dustMinRadius is the smallest dust disc radius in pixels.
	dustMinRadius = 2
	// dustMaxShift bounds the brightness shift of a dust disc: [-40, 40).
	dustMaxShift = 40
)

// ReduceBrightness computes clip(src*alpha + beta, 0, 255) per channel.
// alpha < 1 lowers contrast, beta < 0 darkens.
func ReduceBrightness(src gocv.Mat, dst *gocv.Mat, alpha, beta float64) {
	src.ConvertToWithParams(dst, src.Type(), float32(alpha), float32(beta))
}

// AddFog blends the frame towards white: src*(1-intensity) + 255*intensity.
// intensity is clamped to [0, 1]; 0 leaves the frame unchanged and 1 yields a
// uniformly white frame.
func AddFog(src gocv.Mat, dst *gocv.Mat, intensity float64) {
	intensity = clamp(intensity, 0, 1)

	fog := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), src.Rows(), src.Cols(), src.Type())
	defer fog.Close()

	gocv.AddWeighted(src, 1-intensity, fog, intensity, 0, dst)
}

// AddMotionBlur convolves the frame with a normalized horizontal line kernel
// of length kernelSize. Even sizes are rounded up to the next odd size; sizes
// below 2 copy the frame.
func AddMotionBlur(src gocv.Mat, dst *gocv.Mat, kernelSize int) {
	if kernelSize < 2 {
		src.CopyTo(dst)
		return
	}
	if kernelSize%2 == 0 {
		kernelSize++
	}

	kernel := motionKernel(kernelSize)
	defer kernel.Close()

	gocv.Filter2D(src, dst, gocv.MatType(-1), kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
}

// motionKernel builds a size x size kernel whose middle row is 1/size.
func motionKernel(size int) gocv.Mat {
	kernel := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size, size, gocv.MatTypeCV32F)
	mid := (size - 1) / 2
	for col := 0; col < size; col++ {
		kernel.SetFloatAt(mid, col, 1.0/float32(size))
	}
	return kernel
}

// AddDustSpots draws numSpots filled discs at random positions, each coloured
// like the source pixel at its centre shifted by one random delta in
// [-40, 40) (clamped per channel), and blends the overlay onto the frame at
// 30% opacity. Radii are drawn from [2, maxRadius).
func AddDustSpots(src gocv.Mat, dst *gocv.Mat, numSpots, maxRadius int, rng *rand.Rand) {
	overlay := src.Clone()
	defer overlay.Close()

	rows, cols := src.Rows(), src.Cols()
	if rows > 0 && cols > 0 {
		for i := 0; i < numSpots; i++ {
			x := rng.IntN(cols)
			y := rng.IntN(rows)
			radius := dustMinRadius
			if maxRadius > dustMinRadius {
				radius = dustMinRadius + rng.IntN(maxRadius-dustMinRadius)
			}
			shift := rng.IntN(2*dustMaxShift) - dustMaxShift

			px := src.GetVecbAt(y, x)
			c := color.RGBA{
				B: shiftChannel(px[0], shift),
				G: shiftChannel(px[1], shift),
				R: shiftChannel(px[2], shift),
			}
			gocv.Circle(&overlay, image.Pt(x, y), radius, c, -1)
		}
	}

	gocv.AddWeighted(src, 1-dustBlendWeight, overlay, dustBlendWeight, 0, dst)
}

// AddGaussianNoise adds zero-mean gaussian noise with standard deviation
// sigma independently to every channel of every pixel, clipped to [0, 255].
func AddGaussianNoise(src gocv.Mat, dst *gocv.Mat, sigma float64, rng *rand.Rand) error {
	src.CopyTo(dst)

	data, err := dst.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("noise: frame data not accessible: %w", err)
	}

	for i, v := range data {
		noisy := float64(v) + rng.NormFloat64()*sigma
		data[i] = uint8(clamp(noisy, 0, 255))
	}
	return nil
}

func shiftChannel(v uint8, shift int) uint8 {
	return uint8(clamp(float64(int(v)+shift), 0, 255))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
