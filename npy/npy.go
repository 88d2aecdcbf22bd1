// Package npy reads and writes NumPy .npy files (format version 1.0) holding
// little-endian float64 arrays. It covers exactly what the result artifacts
// need: write an N-dimensional array, read it back.
package npy

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var magic = []byte("\x93NUMPY")

// Write serializes data with the given shape as a float64 .npy array.
func Write(w io.Writer, shape []int, data []float64) error {
	n := 1
	for _, dim := range shape {
		if dim < 0 {
			return fmt.Errorf("negative shape dimension %d", dim)
		}
		n *= dim
	}
	if n != len(data) {
		return fmt.Errorf("shape %v wants %d elements, got %d", shape, n, len(data))
	}

	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': %s, }", shapeTuple(shape))
	// Total header (magic + version + length + dict + newline) pads to a
	// multiple of 64 bytes.
	base := len(magic) + 2 + 2
	padded := base + len(header) + 1
	if rem := padded % 64; rem != 0 {
		padded += 64 - rem
	}
	header += strings.Repeat(" ", padded-base-len(header)-1) + "\n"

	if _, err := w.Write(magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

// Save writes the array to a file, truncating any existing content.
func Save(path string, shape []int, data []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	if err := Write(f, shape, data); err != nil {
		return fmt.Errorf("failed to write %s: %v", path, err)
	}
	return nil
}

// Read parses a float64 .npy array written by Write.
func Read(r io.Reader) ([]int, []float64, error) {
	head := make([]byte, len(magic)+2+2)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, nil, fmt.Errorf("failed to read npy preamble: %v", err)
	}
	if string(head[:len(magic)]) != string(magic) {
		return nil, nil, fmt.Errorf("not an npy file")
	}
	if head[len(magic)] != 1 {
		return nil, nil, fmt.Errorf("unsupported npy version %d.%d", head[len(magic)], head[len(magic)+1])
	}

	headerLen := binary.LittleEndian.Uint16(head[len(magic)+2:])
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("failed to read npy header: %v", err)
	}
	header := string(headerBytes)

	if !strings.Contains(header, "'<f8'") {
		return nil, nil, fmt.Errorf("unsupported dtype in header %q", header)
	}
	if strings.Contains(header, "'fortran_order': True") {
		return nil, nil, fmt.Errorf("fortran order arrays are not supported")
	}

	shape, err := parseShape(header)
	if err != nil {
		return nil, nil, err
	}

	n := 1
	for _, dim := range shape {
		n *= dim
	}
	data := make([]float64, n)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, nil, fmt.Errorf("failed to read npy payload: %v", err)
	}
	return shape, data, nil
}

// Load reads the array from a file.
func Load(path string) ([]int, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	return Read(f)
}

func shapeTuple(shape []int) string {
	if len(shape) == 1 {
		return fmt.Sprintf("(%d,)", shape[0])
	}
	parts := make([]string, len(shape))
	for i, dim := range shape {
		parts[i] = strconv.Itoa(dim)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func parseShape(header string) ([]int, error) {
	open := strings.Index(header, "(")
	close := strings.Index(header, ")")
	if open < 0 || close < open {
		return nil, fmt.Errorf("no shape tuple in header %q", header)
	}
	inner := header[open+1 : close]
	var shape []int
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad shape element %q: %v", part, err)
		}
		shape = append(shape, dim)
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("empty shape tuple in header %q", header)
	}
	return shape, nil
}
