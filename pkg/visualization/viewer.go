package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"volmath/pkg/ndarray"
)

// Viewer renders axis-aligned slices of a 3-D volume as 16-bit grayscale
// images. The volume is indexed (z, y, x) in natural axis order.
type Viewer struct {
	volume *ndarray.Array

	// dimensions of the volume
	width  int
	height int
	depth  int

	// intensity window mapped to [0, 65535]
	low, high float64

	quality int
}

// NewViewer creates a viewer for a 3-D volume. The intensity window defaults
// to the finite minimum and maximum of the volume.
func NewViewer(volume *ndarray.Array) (*Viewer, error) {
	if volume.NDim() != 3 {
		return nil, fmt.Errorf("viewer needs a 3-D volume, got shape %v", volume.Shape())
	}
	v := &Viewer{
		volume:  volume,
		depth:   volume.Dim(0),
		height:  volume.Dim(1),
		width:   volume.Dim(2),
		quality: 90,
	}
	v.low, v.high = finiteRange(volume.Data())
	return v, nil
}

// SetWindow sets the intensity range mapped to black and white.
func (v *Viewer) SetWindow(low, high float64) {
	v.low, v.high = low, high
}

// SetQuality sets the JPEG quality used by SaveSlice.
func (v *Viewer) SetQuality(q int) {
	v.quality = q
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}

		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(v.volume.At(z, y, position)))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}

		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(v.volume.At(z, position, x)))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}

		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(v.volume.At(position, y, x)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: v.quality})
}

// SaveSliceSequence extracts and saves a sequence of slices along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// gray maps a value through the window to a 16-bit gray level. NaN maps to black.
func (v *Viewer) gray(value float64) color.Gray16 {
	span := v.high - v.low
	t := 0.0
	if span > 0 && !math.IsNaN(value) {
		t = (value - v.low) / span
	}
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// finiteRange returns the minimum and maximum of the finite values in data,
// or [0, 1] when there are none.
func finiteRange(data []float64) (float64, float64) {
	finite := make([]float64, 0, len(data))
	for _, d := range data {
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			finite = append(finite, d)
		}
	}
	if len(finite) == 0 {
		return 0, 1
	}
	return floats.Min(finite), floats.Max(finite)
}
