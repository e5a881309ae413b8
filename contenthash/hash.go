// Package contenthash computes the fixed-size digests used to key the
// shader and instance caches.
//
// A Hasher is order sensitive: appending the same values in a different
// order yields a different Hash. Variable-length values are length
// prefixed so that adjacent strings cannot alias each other.
package contenthash

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"hash/fnv"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Size is the size of a Hash in bytes.
const Size = 16

// Hash is a 128-bit FNV-1a content digest.
type Hash [Size]byte

// String returns the digest as 32 lowercase hex digits.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero digest.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Uint64 returns the low 64 bits of the digest.
// Used for shard selection.
func (h Hash) Uint64() uint64 {
	return binary.LittleEndian.Uint64(h[Size-8:])
}

// Hasher accumulates values into a Hash.
// The zero value is not usable; create one with New.
type Hasher struct {
	h   hash.Hash
	buf [8]byte
}

// New returns an empty Hasher.
func New() *Hasher {
	return &Hasher{h: fnv.New128a()}
}

// Of is a convenience that runs fn against a new Hasher and returns the sum.
func Of(fn func(h *Hasher)) Hash {
	h := New()
	fn(h)
	return h.Sum()
}

// Sum returns the digest of everything appended so far.
// The Hasher may continue to be used afterwards.
func (h *Hasher) Sum() Hash {
	var out Hash
	copy(out[:], h.h.Sum(nil))
	return out
}

// AppendBytes appends a length-prefixed byte slice.
func (h *Hasher) AppendBytes(b []byte) *Hasher {
	h.AppendUint64(uint64(len(b)))
	_, _ = h.h.Write(b) // hash.Hash.Write never returns an error
	return h
}

// AppendString appends a length-prefixed string.
func (h *Hasher) AppendString(s string) *Hasher {
	h.AppendUint64(uint64(len(s)))
	_, _ = h.h.Write([]byte(s))
	return h
}

// AppendUint32 appends v in little-endian order.
func (h *Hasher) AppendUint32(v uint32) *Hasher {
	binary.LittleEndian.PutUint32(h.buf[:4], v)
	_, _ = h.h.Write(h.buf[:4])
	return h
}

// AppendUint64 appends v in little-endian order.
func (h *Hasher) AppendUint64(v uint64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.h.Write(h.buf[:])
	return h
}

// AppendInt appends v as a 64-bit value.
func (h *Hasher) AppendInt(v int) *Hasher {
	return h.AppendUint64(uint64(v))
}

// AppendFloat32 appends the IEEE 754 bits of v.
func (h *Hasher) AppendFloat32(v float32) *Hasher {
	return h.AppendUint32(math.Float32bits(v))
}

// AppendFloat64 appends the IEEE 754 bits of v.
func (h *Hasher) AppendFloat64(v float64) *Hasher {
	return h.AppendUint64(math.Float64bits(v))
}

// AppendBool appends a single byte for v.
func (h *Hasher) AppendBool(v bool) *Hasher {
	if v {
		_, _ = h.h.Write([]byte{1})
	} else {
		_, _ = h.h.Write([]byte{0})
	}
	return h
}

// AppendHash appends another digest.
func (h *Hasher) AppendHash(v Hash) *Hasher {
	_, _ = h.h.Write(v[:])
	return h
}

// AppendVec3 appends the three components of v.
func (h *Hasher) AppendVec3(v mgl32.Vec3) *Hasher {
	for _, c := range v {
		h.AppendFloat32(c)
	}
	return h
}

// AppendMat4 appends the sixteen components of m in column-major order.
func (h *Hasher) AppendMat4(m mgl32.Mat4) *Hasher {
	for _, c := range m {
		h.AppendFloat32(c)
	}
	return h
}
