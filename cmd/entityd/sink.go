package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// dumpSink appends every frame, prefixed with its uvarint length, to a
// zstd-compressed file.
type dumpSink struct {
	f   *os.File
	enc *zstd.Encoder
	bw  *bufio.Writer
	hdr [binary.MaxVarintLen64]byte
}

func newDumpSink(path string) (*dumpSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &dumpSink{f: f, enc: enc, bw: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (d *dumpSink) Send(frame []byte) error {
	n := binary.PutUvarint(d.hdr[:], uint64(len(frame)))
	if _, err := d.bw.Write(d.hdr[:n]); err != nil {
		return err
	}
	_, err := d.bw.Write(frame)
	return err
}

func (d *dumpSink) Close() error {
	if err := d.bw.Flush(); err != nil {
		d.enc.Close()
		d.f.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := d.enc.Close(); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}

// readDump decodes a dump file back into frames.
func readDump(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	var frames [][]byte
	for {
		n, err := binary.ReadUvarint(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, err
		}
		frame := make([]byte, n)
		if _, err := io.ReadFull(br, frame); err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
}
