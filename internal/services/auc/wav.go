package auc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

// wavInfo is what the RIFF header says about a file.
type wavInfo struct {
	Format        uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BitsPerSample uint16
	DataSize      uint32
}

func (w wavInfo) PCM() bool {
	return w.Format == wavFormatPCM || w.Format == wavFormatExtensible
}

func (w wavInfo) Duration() time.Duration {
	if w.ByteRate == 0 {
		return 0
	}
	return time.Duration(float64(w.DataSize) / float64(w.ByteRate) * float64(time.Second))
}

// readWAVHeader walks RIFF chunks until both fmt and data are found.
func readWAVHeader(path string) (wavInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return wavInfo{}, err
	}
	defer f.Close()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return wavInfo{}, errNotWAV
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return wavInfo{}, errNotWAV
	}

	var info wavInfo
	haveFmt := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return wavInfo{}, fmt.Errorf("wav header: %w", errNotWAV)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		switch id {
		case "fmt ":
			if size < 16 {
				return wavInfo{}, fmt.Errorf("wav header: short fmt chunk (%d bytes)", size)
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(f, buf); err != nil {
				return wavInfo{}, fmt.Errorf("wav header: %w", err)
			}
			info.Format = binary.LittleEndian.Uint16(buf[0:2])
			info.Channels = binary.LittleEndian.Uint16(buf[2:4])
			info.SampleRate = binary.LittleEndian.Uint32(buf[4:8])
			info.ByteRate = binary.LittleEndian.Uint32(buf[8:12])
			info.BitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			haveFmt = true
			if size%2 == 1 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return wavInfo{}, err
				}
			}
		case "data":
			if !haveFmt {
				return wavInfo{}, fmt.Errorf("wav header: data chunk before fmt")
			}
			info.DataSize = size
			return info, nil
		default:
			skip := int64(size) + int64(size%2)
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return wavInfo{}, err
			}
		}
	}
}
