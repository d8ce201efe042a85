// Package wal implements the append-only write-ahead log that gives the store
// its durability. Every mutation is logged as a self-delimiting frame before
// it is applied to the in-memory state; on restart the log is replayed on top
// of the last snapshot.
//
// The log has two sync postures. In ModeSync every append is flushed and
// fsynced before returning; in ModeBuffered appends go through a buffered
// writer and reach disk on the OS's schedule or at the next explicit Sync.
// The posture can be switched at runtime without reopening the file.
package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Mode is the sync posture of the log.
type Mode int32

const (
	// ModeBuffered batches appends in memory; data reaches disk on Sync or
	// when the buffer fills. Fast, loses the tail on crash.
	ModeBuffered Mode = iota

	// ModeSync flushes and fsyncs every append before it returns.
	ModeSync
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeBuffered:
		return "buffered"
	case ModeSync:
		return "sync"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// Op identifies the mutation a frame carries.
type Op uint8

const (
	// OpPut records a full record write under its coordinate key. Link merges
	// are logged as OpPut frames carrying the merged record, which keeps
	// replay a pure last-write-wins fold.
	OpPut Op = iota + 1

	// OpDelete records the removal of a coordinate key.
	OpDelete
)

// Entry is one replayed log frame.
type Entry struct {
	Seq     uint64
	Op      Op
	Key     string
	Payload []byte
}

const (
	magic   = "EGWL"
	version = 1

	flagZstd = 1 << 0

	headerSize = len(magic) + 2 // magic, version, flags

	// maxFrameSize bounds a single frame body so a corrupt length prefix
	// cannot trigger a huge allocation during replay.
	maxFrameSize = 64 << 20
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Options configures a WAL.
type Options struct {
	// Compress enables zstd compression of frame payloads.
	Compress bool

	// CompressionLevel is the zstd level used when Compress is set.
	// Zero means zstd's default.
	CompressionLevel zstd.EncoderLevel

	// Mode is the initial sync posture.
	Mode Mode

	// BufferSize is the buffered-writer size. Zero means 256 KiB.
	BufferSize int
}

// WAL is an append-only frame log. Safe for concurrent use; appends are
// serialized internally.
type WAL struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	mode Mode
	seq  uint64
	size int64

	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// Open opens or creates the log at path, verifies its header, and truncates
// any torn tail left by a crash so new frames append to a clean prefix.
func Open(path string, opts Options) (*WAL, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256 << 10
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	w := &WAL{
		f:        f,
		mode:     opts.Mode,
		compress: opts.Compress,
	}
	w.dec, err = zstd.NewReader(nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: zstd decoder: %w", err)
	}

	// recover may flip w.compress to match an existing file's header, so the
	// encoder is created afterwards.
	if err := w.recover(); err != nil {
		f.Close()
		return nil, err
	}
	if w.compress {
		level := opts.CompressionLevel
		if level == 0 {
			level = zstd.SpeedDefault
		}
		w.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("wal: zstd encoder: %w", err)
		}
	}

	w.w = bufio.NewWriterSize(f, opts.BufferSize)
	return w, nil
}

// recover validates the header (writing a fresh one into an empty file),
// scans the frames to find the last intact one, and truncates everything
// after it. Also restores the sequence counter and compression flag.
func (w *WAL) recover() error {
	info, err := w.f.Stat()
	if err != nil {
		return fmt.Errorf("wal: stat: %w", err)
	}

	if info.Size() == 0 {
		return w.writeHeader()
	}

	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(w.f, hdr); err != nil {
		return fmt.Errorf("wal: read header: %w", err)
	}
	if string(hdr[:len(magic)]) != magic {
		return fmt.Errorf("wal: bad magic %q", hdr[:len(magic)])
	}
	if hdr[len(magic)] != version {
		return fmt.Errorf("wal: unsupported version %d", hdr[len(magic)])
	}
	w.compress = hdr[len(magic)+1]&flagZstd != 0

	offset := int64(headerSize)
	r := bufio.NewReaderSize(io.NewSectionReader(w.f, offset, info.Size()-offset), 256<<10)
	for {
		n, entry, err := readFrame(r)
		if err != nil {
			// A torn or corrupt tail is expected after a crash in buffered
			// mode; everything before it is intact.
			break
		}
		offset += n
		w.seq = entry.Seq
	}

	if offset < info.Size() {
		if err := w.f.Truncate(offset); err != nil {
			return fmt.Errorf("wal: truncate torn tail: %w", err)
		}
	}
	if _, err := w.f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	w.size = offset
	return nil
}

func (w *WAL) writeHeader() error {
	hdr := make([]byte, headerSize)
	copy(hdr, magic)
	hdr[len(magic)] = version
	if w.compress {
		hdr[len(magic)+1] = flagZstd
	}
	if _, err := w.f.WriteAt(hdr, 0); err != nil {
		return fmt.Errorf("wal: write header: %w", err)
	}
	if _, err := w.f.Seek(int64(headerSize), io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	w.size = int64(headerSize)
	return nil
}

// Mode returns the current sync posture.
func (w *WAL) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// SetMode switches the sync posture. Switching to ModeSync flushes and fsyncs
// the buffered tail first, so the transition itself is a durability point.
func (w *WAL) SetMode(m Mode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if m == w.mode {
		return nil
	}
	if m == ModeSync {
		if err := w.syncLocked(); err != nil {
			return err
		}
	}
	w.mode = m
	return nil
}

// Append logs a single frame. In ModeSync the frame is on disk when Append
// returns. The assigned sequence number is returned.
func (w *WAL) Append(op Op, key string, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return 0, errors.New("wal: closed")
	}
	seq, err := w.appendLocked(op, key, payload)
	if err != nil {
		return 0, err
	}
	if w.mode == ModeSync {
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	}
	return seq, nil
}

// AppendBatch logs all entries with a single sync boundary at the end, so a
// multi-record mutation costs one fsync instead of one per record.
func (w *WAL) AppendBatch(entries []Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return errors.New("wal: closed")
	}
	for _, e := range entries {
		if _, err := w.appendLocked(e.Op, e.Key, e.Payload); err != nil {
			return err
		}
	}
	if w.mode == ModeSync {
		return w.syncLocked()
	}
	return nil
}

func (w *WAL) appendLocked(op Op, key string, payload []byte) (uint64, error) {
	if w.compress && len(payload) > 0 {
		payload = w.enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
	}

	w.seq++
	body := make([]byte, 0, 8+1+2+len(key)+4+len(payload))
	body = binary.LittleEndian.AppendUint64(body, w.seq)
	body = append(body, byte(op))
	body = binary.LittleEndian.AppendUint16(body, uint16(len(key)))
	body = append(body, key...)
	body = binary.LittleEndian.AppendUint32(body, uint32(len(payload)))
	body = append(body, payload...)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return 0, fmt.Errorf("wal: append: %w", err)
	}
	if _, err := w.w.Write(body); err != nil {
		return 0, fmt.Errorf("wal: append: %w", err)
	}
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc32.Checksum(body, castagnoli))
	if _, err := w.w.Write(crcBuf[:]); err != nil {
		return 0, fmt.Errorf("wal: append: %w", err)
	}

	w.size += int64(4 + len(body) + 4)
	return w.seq, nil
}

// Sync flushes the buffered tail and fsyncs the file.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return errors.New("wal: closed")
	}
	return w.syncLocked()
}

func (w *WAL) syncLocked() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// Replay streams every intact frame to fn in append order. Payloads are
// decompressed before delivery. Replay must not race appends; the store calls
// it once during open, before serving traffic.
func (w *WAL) Replay(fn func(Entry) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return errors.New("wal: closed")
	}
	if err := w.syncLocked(); err != nil {
		return err
	}

	r := bufio.NewReaderSize(io.NewSectionReader(w.f, int64(headerSize), w.size-int64(headerSize)), 256<<10)
	for {
		_, entry, err := readFrame(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("wal: replay: %w", err)
		}
		if w.compress && len(entry.Payload) > 0 {
			entry.Payload, err = w.dec.DecodeAll(entry.Payload, nil)
			if err != nil {
				return fmt.Errorf("wal: replay decompress: %w", err)
			}
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

// readFrame reads one frame and returns its on-disk length. Any truncation or
// checksum mismatch is reported as an error; io.EOF at a frame boundary means
// a clean end of log.
func readFrame(r io.Reader) (int64, Entry, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, Entry{}, err
	}
	bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
	if bodyLen == 0 || bodyLen > maxFrameSize {
		return 0, Entry{}, fmt.Errorf("invalid frame length %d", bodyLen)
	}

	buf := make([]byte, bodyLen+4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, Entry{}, fmt.Errorf("short frame: %w", err)
	}
	body, crcBuf := buf[:bodyLen], buf[bodyLen:]
	if crc32.Checksum(body, castagnoli) != binary.LittleEndian.Uint32(crcBuf) {
		return 0, Entry{}, errors.New("frame checksum mismatch")
	}

	if len(body) < 8+1+2 {
		return 0, Entry{}, errors.New("frame body too short")
	}
	var e Entry
	e.Seq = binary.LittleEndian.Uint64(body)
	e.Op = Op(body[8])
	keyLen := int(binary.LittleEndian.Uint16(body[9:]))
	body = body[11:]
	if len(body) < keyLen+4 {
		return 0, Entry{}, errors.New("frame key truncated")
	}
	e.Key = string(body[:keyLen])
	body = body[keyLen:]
	payloadLen := int(binary.LittleEndian.Uint32(body))
	body = body[4:]
	if len(body) != payloadLen {
		return 0, Entry{}, errors.New("frame payload truncated")
	}
	if payloadLen > 0 {
		e.Payload = append([]byte(nil), body...)
	}

	return int64(4 + bodyLen + 4), e, nil
}

// Truncate discards all frames, resetting the log to a bare header. Called
// after a snapshot has captured the state the frames describe.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return errors.New("wal: closed")
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.f.Truncate(int64(headerSize)); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	if _, err := w.f.Seek(int64(headerSize), io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	w.w.Reset(w.f)
	w.size = int64(headerSize)
	w.seq = 0
	return nil
}

// Size returns the current on-disk size in bytes, including buffered frames
// not yet flushed.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Close flushes, fsyncs, and closes the log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.syncLocked()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if w.enc != nil {
		w.enc.Close()
	}
	w.dec.Close()
	w.f = nil
	return err
}
