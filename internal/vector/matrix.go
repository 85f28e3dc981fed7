package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
)

const (
	matrixMagic   = "RCEM"
	matrixVersion = uint32(1)
)

// writeMatrix stores rows as a zstd stream: magic, version, dimension, count,
// then count*dimension little-endian float32 values.
func writeMatrix(w io.Writer, dim int, rows [][]float32) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	bw := bufio.NewWriter(enc)
	if _, err := bw.WriteString(matrixMagic); err != nil {
		enc.Close()
		return err
	}
	header := []uint32{matrixVersion, uint32(dim), uint32(len(rows))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		enc.Close()
		return fmt.Errorf("write matrix header: %w", err)
	}
	for i, row := range rows {
		if len(row) != dim {
			enc.Close()
			return fmt.Errorf("%w: row %d has %d, expected %d", ErrDimensionMismatch, i, len(row), dim)
		}
		if _, err := bw.Write(float32SliceToBytes(row)); err != nil {
			enc.Close()
			return fmt.Errorf("write matrix row: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush matrix: %w", err)
	}
	return enc.Close()
}

// readMatrix reads a file written by writeMatrix.
func readMatrix(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: embeddings: %v", ErrCheckpointCorrupt, err)
	}
	defer dec.Close()
	r := bufio.NewReader(dec)

	magic := make([]byte, len(matrixMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != matrixMagic {
		return 0, nil, fmt.Errorf("%w: embeddings header", ErrCheckpointCorrupt)
	}
	header := make([]uint32, 3)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return 0, nil, fmt.Errorf("%w: embeddings header: %v", ErrCheckpointCorrupt, err)
	}
	if header[0] != matrixVersion {
		return 0, nil, fmt.Errorf("%w: unsupported embeddings version %d", ErrCheckpointCorrupt, header[0])
	}
	dim, n := int(header[1]), int(header[2])
	if dim <= 0 && n > 0 {
		return 0, nil, fmt.Errorf("%w: embeddings dimension %d", ErrCheckpointCorrupt, dim)
	}
	rows := make([][]float32, 0, n)
	buf := make([]byte, dim*4)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, nil, fmt.Errorf("%w: embeddings row %d: %v", ErrCheckpointCorrupt, i, err)
		}
		rows = append(rows, bytesToFloat32Slice(buf))
	}
	return dim, rows, nil
}

func float32SliceToBytes(s []float32) []byte {
	out := make([]byte, 4*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
