package embeddings

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/weaviate/hdf5"
)

// HDF5Store serves precomputed embeddings from an HDF5 file. The file is
// laid out with one group per dataset split; inside a group, feature
// embeddings are datasets named after the extraction layer (for example
// "avgpool"), and gradient embeddings are the datasets "bias" and
// "linear". A bias_linear gradient embedding is the column-wise
// concatenation of the two.
type HDF5Store struct {
	file *hdf5.File
}

// OpenHDF5Store opens an embedding store file read-only.
func OpenHDF5Store(path string) (*HDF5Store, error) {
	file, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, errors.Wrapf(err, "open embedding store %q", path)
	}
	return &HDF5Store{file: file}, nil
}

func (s *HDF5Store) Close() error {
	return s.file.Close()
}

// GradientEmbeddings reads the gradient blocks for a split. The
// hypothesized flag is ignored: stored gradients were computed when the
// store was written.
func (s *HDF5Store) GradientEmbeddings(_ context.Context, split string, _ bool, gradType GradType) (Matrix, error) {
	switch gradType {
	case GradBias, GradLinear:
		return s.readMatrix(split, string(gradType))
	case GradBiasLinear:
		bias, err := s.readMatrix(split, string(GradBias))
		if err != nil {
			return nil, err
		}
		linear, err := s.readMatrix(split, string(GradLinear))
		if err != nil {
			return nil, err
		}
		return concatColumns(bias, linear)
	default:
		return nil, errors.Errorf("unsupported gradient type %q", gradType)
	}
}

// FeatureEmbeddings reads the feature dataset named by the extraction
// layer. The hypothesized flag is ignored, features do not depend on
// labels.
func (s *HDF5Store) FeatureEmbeddings(_ context.Context, split string, _ bool, layer string) (Matrix, error) {
	return s.readMatrix(split, layer)
}

func (s *HDF5Store) readMatrix(split, name string) (Matrix, error) {
	dataset, err := s.file.OpenDataset(fmt.Sprintf("%s/%s", split, name))
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s/%s", split, name)
	}
	defer dataset.Close()

	dataspace := dataset.Space()
	dims, _, err := dataspace.SimpleExtentDims()
	if err != nil {
		return nil, errors.Wrapf(err, "read extent of %s/%s", split, name)
	}
	if len(dims) != 2 {
		return nil, errors.Errorf("dataset %s/%s: expected 2 dimensions, got %d",
			split, name, len(dims))
	}

	rows := dims[0]
	dimensions := dims[1]

	byteSize, err := hdf5ByteSize(dataset)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s/%s", split, name)
	}

	log.WithFields(log.Fields{"split": split, "name": name, "rows": rows,
		"dimensions": dimensions}).Debug("Reading HDF5 embedding block")

	var out Matrix
	switch byteSize {
	case 4:
		data1D := make([]float32, rows*dimensions)
		if err := dataset.Read(&data1D); err != nil {
			return nil, errors.Wrapf(err, "read dataset %s/%s", split, name)
		}
		out = convert1DChunk(data1D, int(dimensions), int(rows))
	case 8:
		data1D := make([]float64, rows*dimensions)
		if err := dataset.Read(&data1D); err != nil {
			return nil, errors.Wrapf(err, "read dataset %s/%s", split, name)
		}
		out = convert1DChunk(data1D, int(dimensions), int(rows))
	}

	return out, nil
}

func hdf5ByteSize(dataset *hdf5.Dataset) (uint, error) {
	datatype, err := dataset.Datatype()
	if err != nil {
		return 0, errors.Wrap(err, "read datatype")
	}

	byteSize := datatype.Size()
	if byteSize != 4 && byteSize != 8 {
		return 0, errors.Errorf("unsupported element byte size %d", byteSize)
	}
	return byteSize, nil
}

func convert1DChunk[D float32 | float64](input []D, dimensions int, rows int) Matrix {
	out := make(Matrix, rows)
	for i := range out {
		out[i] = make([]float32, dimensions)
		for j := 0; j < dimensions; j++ {
			out[i][j] = float32(input[i*dimensions+j])
		}
	}
	return out
}

func concatColumns(a, b Matrix) (Matrix, error) {
	if a.Rows() != b.Rows() {
		return nil, errors.Errorf("gradient block row counts don't match: %d vs %d",
			a.Rows(), b.Rows())
	}
	out := make(Matrix, a.Rows())
	for i := range out {
		row := make([]float32, 0, len(a[i])+len(b[i]))
		row = append(row, a[i]...)
		row = append(row, b[i]...)
		out[i] = row
	}
	return out, nil
}
