// pkg/fs/handle.go
package fs

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// MaxHandleSize is the kernel's MAX_HANDLE_SZ.
const MaxHandleSize = 128

// handleHeaderSize covers handle_bytes and handle_type of struct file_handle.
const handleHeaderSize = 8

// KernelHandle mirrors the kernel's struct file_handle. Values are
// immutable once built.
type KernelHandle struct {
	// Type is the handle_type reported by the filesystem. It is the same
	// for every handle of one mount.
	Type int32

	// Bytes is the number of valid bytes in Data.
	Bytes uint32

	Data [MaxHandleSize]byte
}

// NewKernelHandle encodes an opaque file identifier into a kernel handle.
func NewKernelHandle(typ int32, id []byte) (KernelHandle, error) {
	if len(id) > MaxHandleSize {
		return KernelHandle{}, NewError("encode", "", fmt.Errorf("%w: %d bytes exceeds %d",
			ErrInvalidHandle, len(id), MaxHandleSize))
	}
	h := KernelHandle{
		Type:  typ,
		Bytes: uint32(len(id)),
	}
	copy(h.Data[:], id)
	return h, nil
}

// FileID decodes the handle into the opaque identifier handed to clients.
func (h KernelHandle) FileID() Inode {
	n := h.Bytes
	if n > MaxHandleSize {
		n = MaxHandleSize
	}
	id := make([]byte, n)
	copy(id, h.Data[:n])
	return Inode(id)
}

// Size returns the size of the serialized handle in bytes.
func (h KernelHandle) Size() int {
	return handleHeaderSize + int(h.Bytes)
}

// MarshalBinary encodes the handle in struct file_handle layout, host byte
// order, exactly as name_to_handle_at(2) fills it in.
func (h KernelHandle) MarshalBinary() ([]byte, error) {
	if h.Bytes > MaxHandleSize {
		return nil, NewError("marshal", "", ErrInvalidHandle)
	}
	data := make([]byte, h.Size())
	binary.NativeEndian.PutUint32(data[0:4], h.Bytes)
	binary.NativeEndian.PutUint32(data[4:8], uint32(h.Type))
	copy(data[handleHeaderSize:], h.Data[:h.Bytes])
	return data, nil
}

// UnmarshalBinary parses a struct file_handle produced by MarshalBinary.
func (h *KernelHandle) UnmarshalBinary(data []byte) error {
	if len(data) < handleHeaderSize {
		return NewError("unmarshal", "", fmt.Errorf("%w: header truncated", ErrInvalidHandle))
	}
	n := binary.NativeEndian.Uint32(data[0:4])
	if n > MaxHandleSize {
		return NewError("unmarshal", "", fmt.Errorf("%w: length %d exceeds %d",
			ErrInvalidHandle, n, MaxHandleSize))
	}
	if len(data)-handleHeaderSize < int(n) {
		return NewError("unmarshal", "", fmt.Errorf("%w: data truncated", ErrInvalidHandle))
	}
	*h = KernelHandle{
		Type:  int32(binary.NativeEndian.Uint32(data[4:8])),
		Bytes: n,
	}
	copy(h.Data[:], data[handleHeaderSize:handleHeaderSize+int(n)])
	return nil
}

// String returns a string representation of the handle.
func (h KernelHandle) String() string {
	n := h.Bytes
	if n > MaxHandleSize {
		n = MaxHandleSize
	}
	return fmt.Sprintf("[%s], len = %d, type = %d", hex.EncodeToString(h.Data[:n]), h.Bytes, h.Type)
}

// Inode is the opaque object identifier exchanged with the protocol layer.
// It holds the raw bytes of a kernel handle, without type or length.
type Inode []byte

// String returns the identifier in hex.
func (i Inode) String() string {
	return hex.EncodeToString(i)
}
