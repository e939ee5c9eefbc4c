package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
)

func encodeVectors(vectors []float32) []byte {
	raw := make([]byte, len(vectors)*4)
	for i, v := range vectors {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return raw
}

func decodeVectors(raw []byte) []float32 {
	vectors := make([]float32, len(raw)/4)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vectors
}

// encodeIdentity writes (position, user) pairs in position order.
func encodeIdentity(users []int64) []byte {
	raw := make([]byte, len(users)*identityEntrySize)
	for i, u := range users {
		off := i * identityEntrySize
		binary.LittleEndian.PutUint32(raw[off:], uint32(i))
		binary.LittleEndian.PutUint64(raw[off+4:], uint64(u))
	}
	return raw
}

// decodeIdentity returns users indexed by position. The pairs may appear in
// any order but must cover exactly positions 0..count-1.
func decodeIdentity(raw []byte) ([]int64, error) {
	count := len(raw) / identityEntrySize
	users := make([]int64, count)
	seen := roaring.New()

	for i := 0; i < count; i++ {
		off := i * identityEntrySize
		pos := binary.LittleEndian.Uint32(raw[off:])
		if int64(pos) >= int64(count) {
			return nil, fmt.Errorf("position %d out of range [0, %d)", pos, count)
		}
		if !seen.CheckedAdd(pos) {
			return nil, fmt.Errorf("duplicate position %d", pos)
		}
		users[pos] = int64(binary.LittleEndian.Uint64(raw[off+4:]))
	}
	return users, nil
}

// writeBlob writes header and payload of one blob to w.
func writeBlob(w io.Writer, kind Kind, dim int, count int, gen uuid.UUID, raw []byte, c Compression) error {
	stored, applied, err := compress(raw, c)
	if err != nil {
		return err
	}

	h := Header{
		Magic:       kind.magic(),
		Version:     Version,
		Kind:        kind,
		Compression: applied,
		Dimension:   uint32(dim),
		Count:       uint64(count),
		PayloadSize: uint64(len(stored)),
		Checksum:    CalculateChecksum(raw),
		Generation:  gen,
	}

	if _, err := w.Write(h.marshal()); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// readBlob validates one blob and returns its header and uncompressed
// payload. The payload may alias data.
func readBlob(data []byte, kind Kind) (Header, []byte, error) {
	var h Header
	if err := h.unmarshal(data); err != nil {
		return h, nil, err
	}
	if err := h.validate(kind); err != nil {
		return h, nil, err
	}

	if h.PayloadSize != uint64(len(data)-HeaderSize) {
		return h, nil, fmt.Errorf("payload size %d, header says %d", len(data)-HeaderSize, h.PayloadSize)
	}

	rawSize, err := h.rawSize()
	if err != nil {
		return h, nil, err
	}

	raw, err := decompress(data[HeaderSize:], h.Compression, rawSize)
	if err != nil {
		return h, nil, err
	}
	if err := verifyChecksum(raw, h.Checksum); err != nil {
		return h, nil, err
	}
	return h, raw, nil
}
