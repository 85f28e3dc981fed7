//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// FAISSIndex is an exact inner-product index (IndexFlatIP). FAISS numbers
// vectors in insertion order, so its labels are our row numbers.
type FAISSIndex struct {
	mu  sync.RWMutex
	ptr *C.FaissIndex
	dim int
}

func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("faiss index needs positive dimensions, got %d", dimensions)
	}
	var flat *C.FaissIndexFlatIP
	if err := faissCheck(C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dimensions)), "create index"); err != nil {
		return nil, err
	}
	return &FAISSIndex{ptr: (*C.FaissIndex)(flat), dim: dimensions}, nil
}

// faissCheck turns a non-zero FAISS return code into an error carrying the
// library's last message.
func faissCheck(rc C.int, op string) error {
	if rc == 0 {
		return nil
	}
	msg := "unknown error"
	if cErr := C.faiss_get_last_error(); cErr != nil {
		msg = C.GoString(cErr)
	}
	return fmt.Errorf("faiss %s: %s", op, msg)
}

func (f *FAISSIndex) Type() string { return string(IndexTypeFAISS) }

func (f *FAISSIndex) Dimensions() int { return f.dim }

func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.ptr == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.ptr))
}

func (f *FAISSIndex) Add(_ context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	buf := make([]float32, 0, len(vectors)*f.dim)
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(v), f.dim)
		}
		buf = append(buf, v...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rc := C.faiss_Index_add(f.ptr, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&buf[0])))
	return faissCheck(rc, "add")
}

func (f *FAISSIndex) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dim)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	total := int(C.faiss_Index_ntotal(f.ptr))
	if k <= 0 || total == 0 {
		return nil, nil
	}
	k = min(k, total)

	scores := make([]float32, k)
	labels := make([]int64, k)
	rc := C.faiss_Index_search(f.ptr, 1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&scores[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])))
	if err := faissCheck(rc, "search"); err != nil {
		return nil, err
	}

	hits := make([]Neighbor, 0, k)
	for i, label := range labels {
		// FAISS pads with -1 when fewer than k results exist.
		if label >= 0 {
			hits = append(hits, Neighbor{Row: int(label), Score: float64(scores[i])})
		}
	}
	return hits, nil
}

// Save writes the native FAISS serialization to path.
func (f *FAISSIndex) Save(path string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	f.mu.RLock()
	defer f.mu.RUnlock()
	return faissCheck(C.faiss_write_index_fname(f.ptr, cPath), "save "+path)
}

// Load swaps in the index stored at path after checking its dimension.
func (f *FAISSIndex) Load(path string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var loaded *C.FaissIndex
	if err := faissCheck(C.faiss_read_index_fname(cPath, 0, &loaded), "load "+path); err != nil {
		return err
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dim {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, d, f.dim)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ptr != nil {
		C.faiss_Index_free(f.ptr)
	}
	f.ptr = loaded
	return nil
}

func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ptr != nil {
		C.faiss_Index_free(f.ptr)
		f.ptr = nil
	}
	return nil
}
