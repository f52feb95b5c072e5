// Package tensor provides a minimal n-dimensional float buffer for image data.
package tensor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrShape is returned when data and shape disagree or an index is out of range.
var ErrShape = errors.New("tensor: shape mismatch")

// DType is the element precision a tensor stores.
type DType int

const (
	Float64 DType = iota
	Float32
)

// String returns the dtype name.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	default:
		return "float64"
	}
}

// ParseDType parses "float32" or "float64". Empty means float64.
func ParseDType(s string) (DType, error) {
	switch s {
	case "", "float64":
		return Float64, nil
	case "float32":
		return Float32, nil
	default:
		return Float64, fmt.Errorf("invalid dtype: %s (valid: float32, float64)", s)
	}
}

// Round returns v as stored by this dtype.
func (d DType) Round(v float64) float64 {
	if d == Float32 {
		return float64(float32(v))
	}
	return v
}

// Tensor is a row-major n-dimensional array.
type Tensor struct {
	shape []int
	data  []float64
	dtype DType
}

func numel(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%w: empty shape", ErrShape)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("%w: non-positive dimension in %v", ErrShape, shape)
		}
		if n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: %v overflows", ErrShape, shape)
		}
		n *= d
	}
	return n, nil
}

// New returns a zero-filled float64 tensor of the given shape.
func New(shape ...int) (*Tensor, error) {
	n, err := numel(shape)
	if err != nil {
		return nil, err
	}
	return &Tensor{shape: append([]int(nil), shape...), data: make([]float64, n)}, nil
}

// FromSlice copies data into a new float64 tensor of the given shape.
func FromSlice(data []float64, shape ...int) (*Tensor, error) {
	n, err := numel(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	return &Tensor{
		shape: append([]int(nil), shape...),
		data:  append([]float64(nil), data...),
	}, nil
}

// Validate checks that the tensor is non-nil and its data fills its shape.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil tensor", ErrShape)
	}
	n, err := numel(t.shape)
	if err != nil {
		return err
	}
	if len(t.data) != n {
		return fmt.Errorf("%w: %d values for shape %v", ErrShape, len(t.data), t.shape)
	}
	return nil
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// NDim returns the number of dimensions.
func (t *Tensor) NDim() int {
	return len(t.shape)
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the backing slice. Writes through it modify the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// DType returns the element precision.
func (t *Tensor) DType() DType {
	return t.dtype
}

// SameShape reports whether both tensors have identical shapes.
func (t *Tensor) SameShape(o *Tensor) bool {
	if len(t.shape) != len(o.shape) {
		return false
	}
	for i := range t.shape {
		if t.shape[i] != o.shape[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		shape: append([]int(nil), t.shape...),
		data:  append([]float64(nil), t.data...),
		dtype: t.dtype,
	}
}

// AsType returns a copy stored with the given precision.
func (t *Tensor) AsType(d DType) *Tensor {
	c := t.Clone()
	c.dtype = d
	if d == Float32 {
		for i, v := range c.data {
			c.data[i] = d.Round(v)
		}
	}
	return c
}

func (t *Tensor) offset(idx []int) (int, error) {
	if len(idx) != len(t.shape) {
		return 0, fmt.Errorf("%w: %d indices for %d dimensions", ErrShape, len(idx), len(t.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			return 0, fmt.Errorf("%w: index %v out of range for %v", ErrShape, idx, t.shape)
		}
		off = off*t.shape[i] + v
	}
	return off, nil
}

// At returns the element at the given index.
func (t *Tensor) At(idx ...int) (float64, error) {
	off, err := t.offset(idx)
	if err != nil {
		return 0, err
	}
	return t.data[off], nil
}

// Set stores v at the given index, rounded to the tensor's dtype.
func (t *Tensor) Set(v float64, idx ...int) error {
	off, err := t.offset(idx)
	if err != nil {
		return err
	}
	t.data[off] = t.dtype.Round(v)
	return nil
}

func (t *Tensor) channelBounds(i int) (int, int, error) {
	if len(t.shape) < 2 {
		return 0, 0, fmt.Errorf("%w: channels need at least 2 dimensions, got %v", ErrShape, t.shape)
	}
	if i < 0 || i >= t.shape[0] {
		return 0, 0, fmt.Errorf("%w: channel %d out of range for %v", ErrShape, i, t.shape)
	}
	size := len(t.data) / t.shape[0]
	return i * size, (i + 1) * size, nil
}

// Channel returns a copy of the sub-tensor at index i along axis 0.
func (t *Tensor) Channel(i int) (*Tensor, error) {
	lo, hi, err := t.channelBounds(i)
	if err != nil {
		return nil, err
	}
	return &Tensor{
		shape: append([]int(nil), t.shape[1:]...),
		data:  append([]float64(nil), t.data[lo:hi]...),
		dtype: t.dtype,
	}, nil
}

// SetChannel copies src into index i along axis 0.
func (t *Tensor) SetChannel(i int, src *Tensor) error {
	lo, hi, err := t.channelBounds(i)
	if err != nil {
		return err
	}
	if src.Len() != hi-lo {
		return fmt.Errorf("%w: channel of %d values, got %d", ErrShape, hi-lo, src.Len())
	}
	for j, v := range src.data {
		t.data[lo+j] = t.dtype.Round(v)
	}
	return nil
}

// PopStd returns the population standard deviation (ddof = 0) of all elements.
func (t *Tensor) PopStd() float64 {
	return math.Sqrt(stat.PopVariance(t.data, nil))
}

// Min returns the smallest element.
func (t *Tensor) Min() float64 {
	return floats.Min(t.data)
}

// Max returns the largest element.
func (t *Tensor) Max() float64 {
	return floats.Max(t.data)
}

// AllClose reports whether shapes match and every element satisfies
// |a - b| <= atol + rtol*|b|, with b taken from other.
func (t *Tensor) AllClose(other *Tensor, rtol, atol float64) bool {
	if !t.SameShape(other) {
		return false
	}
	for i, a := range t.data {
		b := other.data[i]
		if math.IsNaN(a) || math.IsNaN(b) {
			return false
		}
		if math.Abs(a-b) > atol+rtol*math.Abs(b) {
			return false
		}
	}
	return true
}
