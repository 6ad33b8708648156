package detection

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"harshcond-go/internal/models"
)

// palette cycles box colours by class id
var palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
	{R: 61, G: 219, B: 134, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 44, G: 153, B: 168, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 100, G: 115, B: 255, A: 255},
	{R: 0, G: 24, B: 236, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
}

func classColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Annotate returns a copy of frame with a box and a "name conf" label drawn
// for every detection.
func Annotate(frame gocv.Mat, dets []models.Detection) gocv.Mat {
	out := frame.Clone()
	for _, det := range dets {
		boxColor := classColor(det.ClassID)
		gocv.Rectangle(&out, det.Box, boxColor, 2)

		label := fmt.Sprintf("%s %.2f", det.ClassName(), det.Score)
		drawLabel(&out, label, det.Box.Min.X, det.Box.Min.Y, boxColor)
	}
	return out
}

// drawLabel draws white text on a filled background above (x, y), or just
// inside the box when there is no room above.
func drawLabel(mat *gocv.Mat, text string, x, y int, bgColor color.RGBA) {
	fontFace := gocv.FontHersheySimplex
	fontScale := 0.5
	thickness := 1
	padding := 3

	textSize := gocv.GetTextSize(text, fontFace, fontScale, thickness)
	top := y - textSize.Y - 2*padding
	if top < 0 {
		top = y
	}

	bgRect := image.Rect(x, top, x+textSize.X+2*padding, top+textSize.Y+2*padding)
	gocv.Rectangle(mat, bgRect, bgColor, -1)

	textColor := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.PutText(mat, text, image.Pt(x+padding, top+textSize.Y+padding), fontFace, fontScale, textColor, thickness)
}
