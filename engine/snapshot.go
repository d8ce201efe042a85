package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/engramgo/codec"
	"github.com/hupe1980/engramgo/model"
)

// Compression selects the snapshot payload compression.
type Compression uint8

const (
	// CompressionNone stores the payload as-is.
	CompressionNone Compression = iota

	// CompressionLZ4 trades ratio for speed.
	CompressionLZ4

	// CompressionZstd trades speed for ratio.
	CompressionZstd
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

const (
	snapshotMagic   = "EGSN"
	snapshotVersion = 1
)

var snapshotCRC = crc32.MakeTable(crc32.Castagnoli)

// snapshotState is the codec-encoded body of a snapshot file.
type snapshotState struct {
	NextID  uint64                `json:"next_id"`
	Records []*model.MemoryRecord `json:"records"`
}

// writeSnapshot serializes state into an atomic, self-describing file:
//
//	magic(4) version(1) compression(1) codecLen(1) codecName
//	payloadLen(8) payload crc32c(4)
//
// The codec name is recorded so the file can be opened regardless of the
// configured default; the CRC covers the (possibly compressed) payload.
func writeSnapshot(path string, c codec.Codec, comp Compression, state *snapshotState) error {
	payload, err := c.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	payload, err = compressPayload(comp, payload)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	buf.WriteByte(snapshotVersion)
	buf.WriteByte(byte(comp))
	name := c.Name()
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(payload)

	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc32.Checksum(payload, snapshotCRC))
	buf.Write(crcBuf[:])

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// readSnapshot loads and validates a snapshot file. A missing file is
// reported as os.ErrNotExist so callers can treat it as an empty store.
func readSnapshot(path string) (*snapshotState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

func decodeSnapshot(data []byte) (*snapshotState, error) {
	if len(data) < len(snapshotMagic)+3 {
		return nil, errors.New("snapshot too short")
	}
	if string(data[:len(snapshotMagic)]) != snapshotMagic {
		return nil, fmt.Errorf("bad snapshot magic %q", data[:len(snapshotMagic)])
	}
	data = data[len(snapshotMagic):]
	if data[0] != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", data[0])
	}
	comp := Compression(data[1])
	nameLen := int(data[2])
	data = data[3:]
	if len(data) < nameLen+8 {
		return nil, errors.New("snapshot header truncated")
	}
	codecName := string(data[:nameLen])
	data = data[nameLen:]

	payloadLen := binary.LittleEndian.Uint64(data)
	data = data[8:]
	if uint64(len(data)) < payloadLen+4 {
		return nil, errors.New("snapshot payload truncated")
	}
	payload := data[:payloadLen]
	crc := binary.LittleEndian.Uint32(data[payloadLen:])
	if crc32.Checksum(payload, snapshotCRC) != crc {
		return nil, errors.New("snapshot checksum mismatch")
	}

	payload, err := decompressPayload(comp, payload)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("unknown snapshot codec %q", codecName)
	}
	var state snapshotState
	if err := c.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &state, nil
}

func compressPayload(comp Compression, payload []byte) ([]byte, error) {
	switch comp {
	case CompressionNone:
		return payload, nil

	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil

	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(payload, make([]byte, 0, len(payload)/2)), nil

	default:
		return nil, fmt.Errorf("unknown compression %d", comp)
	}
}

func decompressPayload(comp Compression, payload []byte) ([]byte, error) {
	switch comp {
	case CompressionNone:
		return payload, nil

	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown compression %d", comp)
	}
}
