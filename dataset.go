package mat73

import (
	"fmt"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// Dataset is an HDF5 dataset: a MATLAB array.
type Dataset struct {
	node
}

func (d *Dataset) String() string {
	return fmt.Sprintf("dataset %q", d.name)
}

func (d *Dataset) info() (*core.DatasetInfo, error) {
	info, err := core.ReadDatasetInfo(d.header, d.file.sb)
	if err != nil {
		return nil, utils.WrapErrorf(err, "dataset %q", d.name)
	}
	return info, nil
}

// Info describes datatype, dataspace, layout and filters in one line.
func (d *Dataset) Info() (string, error) {
	info, err := d.info()
	if err != nil {
		return "", err
	}
	return info.String(), nil
}

// Shape returns the dataset dimensions as stored in the file.
func (d *Dataset) Shape() ([]int, error) {
	info, err := d.info()
	if err != nil {
		return nil, err
	}
	return dims(info.Dataspace), nil
}

func dims(ds *core.DataspaceMessage) []int {
	shape := make([]int, len(ds.Dimensions))
	for i, v := range ds.Dimensions {
		shape[i] = int(v) //nolint:gosec // G115: element counts are bounded by MaxDatasetSize
	}
	return shape
}

// Empty reports whether MATLAB marked the variable as empty. Empty
// variables store their original dimensions as data.
func (d *Dataset) Empty() bool {
	v, err := d.ReadAttribute("MATLAB_empty")
	if err != nil {
		return false
	}
	switch n := v.(type) {
	case uint8:
		return n != 0
	case uint32:
		return n != 0
	case uint64:
		return n != 0
	}
	return false
}

// ReadArray reads and decodes the whole dataset.
func (d *Dataset) ReadArray() (*Array, error) {
	if d.file.osFile == nil {
		return nil, ErrClosed
	}
	info, err := d.info()
	if err != nil {
		return nil, err
	}
	raw, err := core.ReadDatasetRaw(d.file.r, info, d.file.sb)
	if err != nil {
		return nil, utils.WrapErrorf(err, "dataset %q", d.name)
	}

	if d.Empty() {
		return d.emptyArray(info, raw), nil
	}

	data, err := core.DecodeElements(info.Datatype, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: dataset %q: %v", ErrUnsupportedDatatype, d.name, err)
	}
	arr, err := newArray(data, dims(info.Dataspace))
	if err != nil {
		return nil, err
	}
	if d.Class() == "logical" {
		arr = toBools(arr)
	}
	return arr, nil
}

func (d *Dataset) emptyArray(info *core.DatasetInfo, raw []byte) *Array {
	kind, ok := classKinds[d.Class()]
	if !ok {
		kind = KindFloat64
	}
	shape := []int{0}
	if v, err := core.DecodeElements(info.Datatype, raw); err == nil {
		if stored, ok := v.([]uint64); ok && len(stored) > 0 {
			shape = make([]int, len(stored))
			for i, n := range stored {
				shape[i] = int(n) //nolint:gosec // G115: MATLAB dimensions
			}
		}
	}
	return &Array{Kind: kind, Shape: shape, Data: emptySlice(kind)}
}
