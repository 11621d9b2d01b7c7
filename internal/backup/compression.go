package backup

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionStats describes one Compress call.
type CompressionStats struct {
	OriginalSize     int64           `json:"original_size"`
	CompressedSize   int64           `json:"compressed_size"`
	CompressionRatio float64         `json:"compression_ratio"`
	Algorithm        CompressionType `json:"algorithm"`
	Level            int             `json:"level"`
	Duration         time.Duration   `json:"duration"`
}

// LevelRange is the inclusive set of levels an algorithm accepts.
type LevelRange struct {
	Min     int
	Default int
	Max     int
}

// Contains reports whether level lies within the range.
func (r LevelRange) Contains(level int) bool {
	return level >= r.Min && level <= r.Max
}

type codec struct {
	levels    LevelRange
	newWriter func(w io.Writer, level int) (io.WriteCloser, error)
	newReader func(r io.Reader) (io.ReadCloser, error)
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

var codecs = map[CompressionType]codec{
	CompressionTypeGzip: {
		levels: LevelRange{Min: gzip.BestSpeed, Default: 6, Max: gzip.BestCompression},
		newWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, level)
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	},
	// Level 1 is the lz4 fast mode; 2-9 select the high compression levels.
	CompressionTypeLZ4: {
		levels: LevelRange{Min: 1, Default: 1, Max: len(lz4Levels)},
		newWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
			writer := lz4.NewWriter(w)
			if level > 1 {
				if err := writer.Apply(lz4.CompressionLevelOption(lz4Levels[level-1])); err != nil {
					return nil, err
				}
			}
			return writer, nil
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
	},
	// zstd levels are the encoder speed presets, fastest (1) to best (4).
	CompressionTypeZstd: {
		levels: LevelRange{
			Min:     int(zstd.SpeedFastest),
			Default: int(zstd.SpeedDefault),
			Max:     int(zstd.SpeedBestCompression),
		},
		newWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevel(level)), zstd.WithZeroFrames(true))
		},
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return decoder.IOReadCloser(), nil
		},
	},
}

// Levels returns the level range of a compressing algorithm.
func Levels(algorithm CompressionType) (LevelRange, error) {
	c, err := lookupCodec(algorithm)
	if err != nil {
		return LevelRange{}, err
	}
	return c.levels, nil
}

func lookupCodec(algorithm CompressionType) (codec, error) {
	c, ok := codecs[algorithm]
	if !ok {
		return codec{}, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}
	return c, nil
}

// CompressionManager compresses and decompresses whole export payloads.
type CompressionManager struct{}

func NewCompressionManager() *CompressionManager {
	return &CompressionManager{}
}

// Compress encodes data with algorithm. Levels outside the algorithm's range
// fall back to its default; "none" returns data unchanged.
func (cm *CompressionManager) Compress(data []byte, algorithm CompressionType, level int) ([]byte, *CompressionStats, error) {
	start := time.Now()
	stats := &CompressionStats{
		OriginalSize: int64(len(data)),
		Algorithm:    algorithm,
	}

	if algorithm == CompressionTypeNone || algorithm == "" {
		stats.Algorithm = CompressionTypeNone
		stats.CompressedSize = stats.OriginalSize
		stats.CompressionRatio = 1.0
		return data, stats, nil
	}

	c, err := lookupCodec(algorithm)
	if err != nil {
		return nil, nil, err
	}
	if !c.levels.Contains(level) {
		level = c.levels.Default
	}

	var buf bytes.Buffer
	writer, err := c.newWriter(&buf, level)
	if err != nil {
		return nil, nil, NewCompressionError(fmt.Sprintf("failed to create %s writer", algorithm), err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, nil, NewCompressionError(fmt.Sprintf("failed to write %s data", algorithm), err)
	}
	if err := writer.Close(); err != nil {
		return nil, nil, NewCompressionError(fmt.Sprintf("failed to finish %s stream", algorithm), err)
	}

	stats.Level = level
	stats.CompressedSize = int64(buf.Len())
	stats.CompressionRatio = CalculateCompressionRatio(stats.OriginalSize, stats.CompressedSize)
	stats.Duration = time.Since(start)
	return buf.Bytes(), stats, nil
}

// Decompress reverses Compress.
func (cm *CompressionManager) Decompress(data []byte, algorithm CompressionType) ([]byte, error) {
	if algorithm == CompressionTypeNone || algorithm == "" {
		return data, nil
	}

	c, err := lookupCodec(algorithm)
	if err != nil {
		return nil, err
	}

	reader, err := c.newReader(bytes.NewReader(data))
	if err != nil {
		return nil, NewCompressionError(fmt.Sprintf("failed to open %s stream", algorithm), err)
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewCompressionError(fmt.Sprintf("failed to decompress %s data", algorithm), err)
	}
	return out, nil
}

// CalculateCompressionRatio returns compressed/original, 1.0 for empty input.
func CalculateCompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 1.0
	}
	return float64(compressedSize) / float64(originalSize)
}
