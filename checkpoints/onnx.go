package checkpoints

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// ONNX wire schema subset used for weight export. Field numbers follow
// onnx.proto; only initializer tensors are emitted, which is enough for
// downstream tools to pick up the trained parameters.
const (
	onnxIRVersion = 7
	onnxOpset     = 13

	// ModelProto
	fieldModelIRVersion       = 1
	fieldModelProducerName    = 2
	fieldModelProducerVersion = 3
	fieldModelVersion         = 5
	fieldModelGraph           = 7
	fieldModelOpsetImport     = 8

	// OperatorSetIdProto
	fieldOpsetVersion = 2

	// GraphProto
	fieldGraphName        = 2
	fieldGraphInitializer = 5

	// TensorProto
	fieldTensorDims      = 1
	fieldTensorDataType  = 2
	fieldTensorFloatData = 4
	fieldTensorName      = 8
	fieldTensorRawData   = 9

	onnxDataTypeFloat = 1
)

// exportONNX writes the checkpoint's weights as an ONNX model file.
func exportONNX(checkpoint *Checkpoint, path string) error {
	var graph []byte
	graph = protowire.AppendTag(graph, fieldGraphName, protowire.BytesType)
	graph = protowire.AppendString(graph, "forecaster")
	for _, w := range checkpoint.Weights {
		graph = protowire.AppendTag(graph, fieldGraphInitializer, protowire.BytesType)
		graph = protowire.AppendBytes(graph, encodeTensorProto(w))
	}

	var opset []byte
	opset = protowire.AppendTag(opset, fieldOpsetVersion, protowire.VarintType)
	opset = protowire.AppendVarint(opset, onnxOpset)

	var model []byte
	model = protowire.AppendTag(model, fieldModelIRVersion, protowire.VarintType)
	model = protowire.AppendVarint(model, onnxIRVersion)
	model = protowire.AppendTag(model, fieldModelProducerName, protowire.BytesType)
	model = protowire.AppendString(model, "go-forecast")
	model = protowire.AppendTag(model, fieldModelProducerVersion, protowire.BytesType)
	model = protowire.AppendString(model, "1.0.0")
	model = protowire.AppendTag(model, fieldModelVersion, protowire.VarintType)
	model = protowire.AppendVarint(model, 1)
	model = protowire.AppendTag(model, fieldModelGraph, protowire.BytesType)
	model = protowire.AppendBytes(model, graph)
	model = protowire.AppendTag(model, fieldModelOpsetImport, protowire.BytesType)
	model = protowire.AppendBytes(model, opset)

	if err := os.WriteFile(path, model, 0o644); err != nil {
		return fmt.Errorf("failed to write ONNX file: %v", err)
	}
	return nil
}

func encodeTensorProto(w WeightTensor) []byte {
	var b []byte
	for _, dim := range w.Shape {
		b = protowire.AppendTag(b, fieldTensorDims, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(dim))
	}
	b = protowire.AppendTag(b, fieldTensorDataType, protowire.VarintType)
	b = protowire.AppendVarint(b, onnxDataTypeFloat)
	b = protowire.AppendTag(b, fieldTensorName, protowire.BytesType)
	b = protowire.AppendString(b, w.Name)

	raw := make([]byte, 4*len(w.Data))
	for i, v := range w.Data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	b = protowire.AppendTag(b, fieldTensorRawData, protowire.BytesType)
	b = protowire.AppendBytes(b, raw)
	return b
}

// importONNX reads weights back from an ONNX model file. Training state is
// not part of the ONNX format, so only weights and metadata are recovered.
func importONNX(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ONNX file: %w", err)
	}

	checkpoint := &Checkpoint{
		Metadata: CheckpointMetadata{
			Framework:   "go-forecast",
			Version:     "1.0.0",
			CreatedAt:   time.Now(),
			Description: "imported from ONNX",
		},
	}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("malformed ONNX model: %v", protowire.ParseError(n))
		}
		data = data[n:]

		if num == fieldModelGraph && typ == protowire.BytesType {
			graph, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("malformed ONNX graph: %v", protowire.ParseError(n))
			}
			weights, err := decodeGraphInitializers(graph)
			if err != nil {
				return nil, err
			}
			checkpoint.Weights = append(checkpoint.Weights, weights...)
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("malformed ONNX field %d: %v", num, protowire.ParseError(n))
		}
		data = data[n:]
	}

	if len(checkpoint.Weights) == 0 {
		return nil, fmt.Errorf("ONNX model contains no initializer tensors")
	}
	return checkpoint, nil
}

func decodeGraphInitializers(graph []byte) ([]WeightTensor, error) {
	var weights []WeightTensor
	for len(graph) > 0 {
		num, typ, n := protowire.ConsumeTag(graph)
		if n < 0 {
			return nil, fmt.Errorf("malformed graph field: %v", protowire.ParseError(n))
		}
		graph = graph[n:]

		if num == fieldGraphInitializer && typ == protowire.BytesType {
			raw, n := protowire.ConsumeBytes(graph)
			if n < 0 {
				return nil, fmt.Errorf("malformed initializer: %v", protowire.ParseError(n))
			}
			w, err := decodeTensorProto(raw)
			if err != nil {
				return nil, err
			}
			weights = append(weights, w)
			graph = graph[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, graph)
		if n < 0 {
			return nil, fmt.Errorf("malformed graph field %d: %v", num, protowire.ParseError(n))
		}
		graph = graph[n:]
	}
	return weights, nil
}

func decodeTensorProto(b []byte) (WeightTensor, error) {
	var w WeightTensor
	dataType := uint64(onnxDataTypeFloat)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return w, fmt.Errorf("malformed tensor field: %v", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldTensorDims && typ == protowire.VarintType:
			dim, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return w, fmt.Errorf("malformed dim: %v", protowire.ParseError(n))
			}
			w.Shape = append(w.Shape, int(dim))
			b = b[n:]

		case num == fieldTensorDims && typ == protowire.BytesType:
			// Packed encoding of the dims field.
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return w, fmt.Errorf("malformed packed dims: %v", protowire.ParseError(n))
			}
			for len(packed) > 0 {
				dim, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return w, fmt.Errorf("malformed packed dim: %v", protowire.ParseError(m))
				}
				w.Shape = append(w.Shape, int(dim))
				packed = packed[m:]
			}
			b = b[n:]

		case num == fieldTensorDataType && typ == protowire.VarintType:
			var n int
			dataType, n = protowire.ConsumeVarint(b)
			if n < 0 {
				return w, fmt.Errorf("malformed data type: %v", protowire.ParseError(n))
			}
			b = b[n:]

		case num == fieldTensorName && typ == protowire.BytesType:
			name, n := protowire.ConsumeString(b)
			if n < 0 {
				return w, fmt.Errorf("malformed tensor name: %v", protowire.ParseError(n))
			}
			w.Name = name
			b = b[n:]

		case num == fieldTensorRawData && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return w, fmt.Errorf("malformed raw data: %v", protowire.ParseError(n))
			}
			if len(raw)%4 != 0 {
				return w, fmt.Errorf("raw data length %d is not a multiple of 4", len(raw))
			}
			w.Data = make([]float32, len(raw)/4)
			for i := range w.Data {
				w.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
			}
			b = b[n:]

		case num == fieldTensorFloatData && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return w, fmt.Errorf("malformed float data: %v", protowire.ParseError(n))
			}
			for len(packed) >= 4 {
				bits, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return w, fmt.Errorf("malformed packed float: %v", protowire.ParseError(m))
				}
				w.Data = append(w.Data, math.Float32frombits(uint32(bits)))
				packed = packed[m:]
			}
			b = b[n:]

		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return w, fmt.Errorf("malformed tensor field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if dataType != onnxDataTypeFloat {
		return w, fmt.Errorf("unsupported ONNX tensor data type %d", dataType)
	}
	return w, nil
}
