package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// VectorsBlob is the blob name of the vector snapshot.
	VectorsBlob = "user_embeddings.index"
	// IdentityBlob is the blob name of the position-to-user snapshot.
	IdentityBlob = "position_to_user.map"
	// PointerBlob names the generation whose blob pair is current.
	PointerBlob = "snapshot.current"

	// VectorsMagic identifies vector snapshots (ASCII: "FVEC").
	VectorsMagic uint32 = 0x43455646
	// IdentityMagic identifies identity snapshots (ASCII: "FIDM").
	IdentityMagic uint32 = 0x4D444946
	// PointerMagic identifies the current-generation pointer (ASCII: "FCUR").
	PointerMagic uint32 = 0x52554346
	// Version is the current snapshot format version.
	Version uint32 = 1

	// HeaderSize is the encoded size of Header in bytes.
	HeaderSize = 64

	identityEntrySize = 12
)

var (
	// ErrNoSnapshot is returned by Load when no complete snapshot exists.
	ErrNoSnapshot = errors.New("persistence: no snapshot")
	// ErrCorrupt is returned by Load when the snapshot cannot be trusted.
	ErrCorrupt = errors.New("persistence: corrupt snapshot")

	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
)

// Kind distinguishes the blobs of a snapshot.
type Kind uint8

const (
	KindVectors  Kind = 1
	KindIdentity Kind = 2
	// KindPointer is a header-only blob naming the current generation.
	KindPointer Kind = 3
)

func (k Kind) magic() uint32 {
	switch k {
	case KindIdentity:
		return IdentityMagic
	case KindPointer:
		return PointerMagic
	default:
		return VectorsMagic
	}
}

// BlobName returns the store name of blob name within generation gen.
func BlobName(gen uuid.UUID, name string) string {
	return gen.String() + "/" + name
}

// Compression selects the payload codec.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

// String returns the configuration name of c.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd". The empty string is none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("persistence: unknown compression %q", s)
	}
}

// Header is the 64-byte header at the start of every snapshot blob.
type Header struct {
	Magic       uint32
	Version     uint32
	Kind        Kind
	Compression Compression
	_           [2]byte
	Dimension   uint32
	Count       uint64
	PayloadSize uint64 // stored (possibly compressed) payload bytes
	Checksum    uint32 // CRC32 of the uncompressed payload
	_           [4]byte
	Generation  uuid.UUID
	Reserved    [8]byte
}

func (h *Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	buf[8] = byte(h.Kind)
	buf[9] = byte(h.Compression)
	binary.LittleEndian.PutUint32(buf[12:], h.Dimension)
	binary.LittleEndian.PutUint64(buf[16:], h.Count)
	binary.LittleEndian.PutUint64(buf[24:], h.PayloadSize)
	binary.LittleEndian.PutUint32(buf[32:], h.Checksum)
	copy(buf[40:56], h.Generation[:])
	copy(buf[56:64], h.Reserved[:])
	return buf
}

func (h *Header) unmarshal(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("short header: %d bytes", len(buf))
	}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	h.Kind = Kind(buf[8])
	h.Compression = Compression(buf[9])
	h.Dimension = binary.LittleEndian.Uint32(buf[12:])
	h.Count = binary.LittleEndian.Uint64(buf[16:])
	h.PayloadSize = binary.LittleEndian.Uint64(buf[24:])
	h.Checksum = binary.LittleEndian.Uint32(buf[32:])
	copy(h.Generation[:], buf[40:56])
	copy(h.Reserved[:], buf[56:64])
	return nil
}

func (h *Header) validate(kind Kind) error {
	if h.Magic != kind.magic() {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	if h.Kind != kind {
		return fmt.Errorf("unexpected blob kind %d", h.Kind)
	}
	return nil
}

// rawSize is the uncompressed payload size implied by the header.
func (h *Header) rawSize() (int, error) {
	var per uint64
	switch h.Kind {
	case KindVectors:
		if h.Dimension == 0 {
			return 0, errors.New("zero dimension")
		}
		per = uint64(h.Dimension) * 4
	case KindIdentity:
		per = identityEntrySize
	case KindPointer:
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown blob kind %d", h.Kind)
	}
	if h.Count > (1<<32)-1 || h.Count > uint64(maxInt)/per {
		return 0, fmt.Errorf("count %d too large", h.Count)
	}
	return int(h.Count * per), nil
}

const maxInt = int(^uint(0) >> 1)
