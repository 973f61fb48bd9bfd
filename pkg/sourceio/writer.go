package sourceio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"volmath/pkg/combine"
	"volmath/pkg/config"
	"volmath/pkg/models"
	"volmath/pkg/ndarray"
	"volmath/pkg/stl"
	"volmath/pkg/visualization"
)

// File names written by Writer.Save.
const (
	MetadataFile = "metadata.yaml"
	ManifestFile = "result.yaml"
	ImageFile    = "result.jpg"
	SlicesDir    = "slices"
	VolumeFile   = "volume.bin"
	MeshFile     = "mesh.stl"
)

// resultInfo is the content of MetadataFile.
type resultInfo struct {
	Kind             string `yaml:"kind"`
	Shape            []int  `yaml:"shape"`
	combine.Metadata `yaml:",inline"`
}

// Writer saves combination results.
type Writer struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewWriter creates a writer. A nil logger disables logging.
func NewWriter(cfg *config.Config, logger *zap.Logger) *Writer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{cfg: cfg, logger: logger}
}

// Save writes res into dir and returns the paths written.
//
// MetadataFile is always written. Volumes are written as JPEG previews
// (ImageFile for 2-D, SlicesDir for 3-D) plus the raw little-endian float64
// buffer in VolumeFile. Point sets and meshes are written as a ManifestFile
// that Loader can read back; triangle meshes additionally go to MeshFile.
func (w *Writer) Save(dir string, res *combine.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	add := func(p string) { written = append(written, p) }

	info := resultInfo{Kind: res.Kind.String(), Shape: res.Data.Shape(), Metadata: res.Metadata}
	raw, err := yaml.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metaPath := filepath.Join(dir, MetadataFile)
	if err := os.WriteFile(metaPath, raw, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	add(metaPath)

	src := res.Source(res.Metadata.Operation)
	switch res.Kind {
	case models.Volumetric:
		paths, err := w.saveVolume(dir, res.Data)
		if err != nil {
			return nil, err
		}
		written = append(written, paths...)

	case models.PointSet, models.Mesh:
		p := filepath.Join(dir, ManifestFile)
		if err := WriteManifest(p, src); err != nil {
			return nil, fmt.Errorf("failed to write manifest: %w", err)
		}
		add(p)

		if res.Kind == models.Mesh && w.cfg.Output.WriteSTL {
			p, err := w.saveSTL(dir, res)
			if err != nil {
				return nil, err
			}
			if p != "" {
				add(p)
			}
		}
	}

	w.logger.Info("saved result", zap.String("dir", dir), zap.Strings("files", written))
	return written, nil
}

func (w *Writer) saveVolume(dir string, data *ndarray.Array) ([]string, error) {
	var written []string

	binPath := filepath.Join(dir, VolumeFile)
	if err := writeFloats(binPath, data.Data()); err != nil {
		return nil, err
	}
	written = append(written, binPath)

	switch data.NDim() {
	case 2:
		stack, err := ndarray.New([]int{1, data.Dim(0), data.Dim(1)}, data.Data())
		if err != nil {
			return nil, err
		}
		viewer, err := w.viewer(stack)
		if err != nil {
			return nil, err
		}
		img, err := viewer.ExtractSlice("z", 0)
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, ImageFile)
		if err := viewer.SaveSlice(img, p); err != nil {
			return nil, fmt.Errorf("failed to save image: %w", err)
		}
		written = append(written, p)

	case 3:
		viewer, err := w.viewer(data)
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, SlicesDir)
		if err := viewer.SaveSliceSequence("z", p); err != nil {
			return nil, fmt.Errorf("failed to save slices: %w", err)
		}
		written = append(written, p)

	default:
		w.logger.Debug("no image preview for volume rank", zap.Int("ndim", data.NDim()))
	}
	return written, nil
}

func (w *Writer) viewer(vol *ndarray.Array) (*visualization.Viewer, error) {
	viewer, err := visualization.NewViewer(vol)
	if err != nil {
		return nil, err
	}
	if !w.cfg.Output.Normalize {
		viewer.SetWindow(0, 1)
	}
	viewer.SetQuality(w.cfg.Output.JPEGQuality)
	return viewer, nil
}

// saveSTL writes a triangle mesh. Meshes that are not 3-D triangle meshes are
// skipped with a warning and yield an empty path.
func (w *Writer) saveSTL(dir string, res *combine.Result) (string, error) {
	triangles, err := stl.FromMesh(res.Data, res.Faces)
	if errors.Is(err, stl.ErrNotTriangulated) {
		w.logger.Warn("skipping STL export", zap.Error(err))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, MeshFile)
	if err := stl.SaveToSTL(p, triangles); err != nil {
		return "", err
	}
	return p, nil
}

// writeFloats writes values as little-endian float64
func writeFloats(path string, values []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create binary file: %w", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := binary.Write(bw, binary.LittleEndian, values); err != nil {
		return fmt.Errorf("failed to write binary data: %w", err)
	}
	return bw.Flush()
}
