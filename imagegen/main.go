package imagegen

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	canvasWidth  = 1024
	canvasHeight = 1024
)

// Placeholder draws a fallback avatar card when the image model is down or
// not configured. Indigo gradient background with the caption centered.
func Placeholder(caption string) ([]byte, error) {
	dc := gg.NewContext(canvasWidth, canvasHeight)

	grad := gg.NewLinearGradient(0, 0, 0, canvasHeight)
	grad.AddColorStop(0, color.RGBA{R: 49, G: 46, B: 129, A: 255})
	grad.AddColorStop(1, color.RGBA{R: 30, G: 64, B: 175, A: 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, canvasWidth, canvasHeight)
	dc.Fill()

	dc.SetRGBA(1, 1, 1, 0.08)
	for r := 420.0; r > 60; r -= 90 {
		dc.DrawCircle(canvasWidth/2, canvasHeight/2, r)
		dc.Fill()
	}

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(caption, canvasWidth/2, canvasHeight/2, 0.5, 0.5, canvasWidth*0.7, 1.8, gg.AlignCenter)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("imagegen: encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
