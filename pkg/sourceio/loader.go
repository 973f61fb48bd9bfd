// Package sourceio loads data sources from disk and writes combination
// results back to disk.
//
// Supported inputs:
//   - a directory of image slices, read as a (slices, height, width) volume
//   - a single image file, read as a (height, width) volume
//   - a binary STL file, read as a triangle mesh
//   - a YAML manifest describing a volume, point set or mesh
package sourceio

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"volmath/pkg/config"
	"volmath/pkg/models"
	"volmath/pkg/ndarray"
	"volmath/pkg/stl"
)

// Loader reads data sources from paths.
type Loader struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLoader creates a loader. A nil logger disables logging.
func NewLoader(cfg *config.Config, logger *zap.Logger) *Loader {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, logger: logger}
}

// Load reads the source at path. The returned source's Path is path and its
// Name is the base name without extension.
func (l *Loader) Load(path string) (*models.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var src *models.Source
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case info.IsDir():
		src, err = l.loadSliceStack(path)
	case ext == ".stl":
		src, err = l.loadSTL(path)
	case ext == ".yaml" || ext == ".yml":
		src, err = ReadManifest(path)
	case l.isSlice(path):
		src, err = l.loadImage(path)
	default:
		return nil, fmt.Errorf("unsupported input %s", path)
	}
	if err != nil {
		return nil, err
	}

	src.Path = path
	if src.Name == "" {
		src.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	l.logger.Info("loaded source",
		zap.String("path", path),
		zap.Stringer("kind", src.Kind),
		zap.Ints("shape", arrayOf(src).Shape()))
	return src, nil
}

func arrayOf(src *models.Source) *ndarray.Array {
	if src.Kind == models.Mesh {
		return src.Mesh.Vertices
	}
	return src.Data
}

func (l *Loader) isSlice(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(l.cfg.Input.SliceExtensions, ext)
}

// loadSliceStack loads the slices in dir, ordered by the number embedded in
// each file name, into a (slices, height, width) volume.
func (l *Loader) loadSliceStack(dir string) (*models.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, e := range entries {
		if !e.IsDir() && l.isSlice(e.Name()) {
			imageFiles = append(imageFiles, e.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	var (
		data          []float64
		width, height int
	)
	for i, name := range imageFiles {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}

		b := img.Bounds()
		if i == 0 {
			width, height = b.Dx(), b.Dy()
			data = make([]float64, 0, width*height*len(imageFiles))
		} else if b.Dx() != width || b.Dy() != height {
			return nil, fmt.Errorf("%w: slice %s is %dx%d, expected %dx%d",
				models.ErrMalformedSource, name, b.Dx(), b.Dy(), width, height)
		}
		data = append(data, imageToFloat(img)...)
		l.logger.Debug("read slice", zap.String("file", name), zap.Int("index", i))
	}

	vol, err := ndarray.New([]int{len(imageFiles), height, width}, data)
	if err != nil {
		return nil, err
	}
	return models.NewVolume("", dir, vol), nil
}

func (l *Loader) loadImage(path string) (*models.Source, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	vol, err := ndarray.New([]int{b.Dy(), b.Dx()}, imageToFloat(img))
	if err != nil {
		return nil, err
	}
	return models.NewVolume("", path, vol), nil
}

func (l *Loader) loadSTL(path string) (*models.Source, error) {
	triangles, err := stl.LoadSTL(path)
	if err != nil {
		return nil, err
	}
	if len(triangles) == 0 {
		return nil, fmt.Errorf("%w: %s has no triangles", models.ErrMalformedSource, path)
	}
	vertices, faces, err := stl.ToMesh(triangles)
	if err != nil {
		return nil, err
	}
	return &models.Source{
		Kind: models.Mesh,
		Path: path,
		Mesh: &models.MeshData{Vertices: vertices, Faces: faces},
	}, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage loads an image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// imageToFloat converts an image to row-major intensities in [0, 1]
func imageToFloat(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			result[y*width+x] = float64(r) / 65535.0
		}
	}

	return result
}
