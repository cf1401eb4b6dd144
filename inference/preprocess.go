package inference

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Preprocessed is a model input plus the factors that map model-space boxes
// back onto the source image.
type Preprocessed struct {
	Input  Input
	ScaleX float64
	ScaleY float64
}

// Preprocess converts img to a CHW tensor with values in [0, 1]. When width
// and height are positive the image is resized first; otherwise the source
// size is kept.
func Preprocess(img image.Image, width, height int) (*Preprocessed, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	var nrgba *image.NRGBA
	if width > 0 && height > 0 && (width != b.Dx() || height != b.Dy()) {
		nrgba = imaging.Resize(img, width, height, imaging.Linear)
	} else {
		nrgba = imaging.Clone(img)
	}

	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < w; x++ {
			p := row[4*x : 4*x+4]
			i := y*w + x
			data[i] = float32(p[0]) / 255
			data[plane+i] = float32(p[1]) / 255
			data[2*plane+i] = float32(p[2]) / 255
		}
	}

	return &Preprocessed{
		Input:  Input{Data: data, Height: h, Width: w},
		ScaleX: float64(b.Dx()) / float64(w),
		ScaleY: float64(b.Dy()) / float64(h),
	}, nil
}
