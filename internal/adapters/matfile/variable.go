package matfile

import "fmt"

// Variable is a real numeric array. Data holds every element as float64 in
// MATLAB's column-major order.
type Variable struct {
	Name    string
	Class   Class
	Dims    []int
	Logical bool
	Data    []float64
}

// NewDouble wraps column-major data as a double array with the given dims.
func NewDouble(name string, dims []int, data []float64) (*Variable, error) {
	v := &Variable{Name: name, Class: ClassDouble, Dims: append([]int(nil), dims...), Data: data}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// RowVector returns a 1xN double array, the layout MATLAB and SciPy use for
// a saved one-dimensional sequence.
func RowVector(name string, values []float64) *Variable {
	return &Variable{Name: name, Class: ClassDouble, Dims: []int{1, len(values)}, Data: values}
}

// FromRows builds a double array from row-major rows x cols data.
func FromRows(name string, rows, cols int, data []float64) (*Variable, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %s: %dx%d with %d values", ErrCorrupt, name, rows, cols, len(data))
	}
	cm := make([]float64, len(data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cm[c*rows+r] = data[r*cols+c]
		}
	}
	return NewDouble(name, []int{rows, cols}, cm)
}

// Len is the number of elements implied by Dims.
func (v *Variable) Len() int {
	n := 1
	for _, d := range v.Dims {
		n *= d
	}
	return n
}

// Matrix returns a two-dimensional array as rows x cols in row-major order.
// Trailing singleton dimensions are ignored.
func (v *Variable) Matrix() (rows, cols int, data []float64, err error) {
	dims := v.Dims
	for len(dims) > 2 && dims[len(dims)-1] == 1 {
		dims = dims[:len(dims)-1]
	}
	if len(dims) != 2 {
		return 0, 0, nil, fmt.Errorf("%w: %s has %d dimensions", ErrUnsupportedClass, v.Name, len(v.Dims))
	}
	rows, cols = dims[0], dims[1]
	data = make([]float64, rows*cols)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			data[r*cols+c] = v.Data[c*rows+r]
		}
	}
	return rows, cols, data, nil
}

func (v *Variable) validate() error {
	if v.Name == "" {
		return fmt.Errorf("%w: empty variable name", ErrCorrupt)
	}
	if len(v.Dims) < 2 {
		return fmt.Errorf("%w: %s needs at least two dimensions", ErrCorrupt, v.Name)
	}
	for _, d := range v.Dims {
		if d < 0 {
			return fmt.Errorf("%w: %s has negative dimension", ErrCorrupt, v.Name)
		}
	}
	if len(v.Data) != v.Len() {
		return fmt.Errorf("%w: %s has dims %v but %d values", ErrCorrupt, v.Name, v.Dims, len(v.Data))
	}
	return nil
}
