package measurement

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/asfadmin/burst2safe/pkg/annotation"
	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// Burst rasters are distributed as uncompressed strip-organized GeoTIFFs of
// 32-bit complex integer samples, one 16-bit integer each for the real and
// imaginary parts. This file implements the minimal reader and writer for
// exactly that layout. Tiled, compressed, or multi-band files are rejected.

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagTileWidth       = 322
	tagSampleFormat    = 339
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735

	typeShort  = 3
	typeLong   = 4
	typeDouble = 12

	compressionNone  = 1
	sampleComplexInt = 5

	bytesPerSample = 4
)

// GeoTIFFReader reads burst rasters from their downloaded GeoTIFF files.
type GeoTIFFReader struct{}

// NewGeoTIFFReader creates a reader over downloaded burst rasters.
func NewGeoTIFFReader() *GeoTIFFReader { return &GeoTIFFReader{} }

// ReadBurst reads the raster at info.DataPath and checks it against the
// burst's annotated dimensions.
func (r *GeoTIFFReader) ReadBurst(info *burst.Info) ([]complex64, error) {
	file, err := os.Open(info.DataPath)
	if err != nil {
		return nil, errors.WrapIO("open", info.DataPath, err)
	}
	defer file.Close()

	samples, width, height, err := decodeTIFF(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", info.DataPath, err)
	}
	if width != info.Width || height != info.Length {
		return nil, errors.NewStructuralMismatchError("measurement",
			fmt.Sprintf("raster is %dx%d but the annotation describes %dx%d",
				width, height, info.Width, info.Length))
	}
	return samples, nil
}

// decodeTIFF reads a strip-organized complex int16 TIFF.
func decodeTIFF(r io.ReadSeeker) ([]complex64, int, int, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, 0, 0, err
	}
	var order binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, 0, 0, errors.NewStructuralMismatchError("measurement", "not a TIFF file")
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, 0, 0, errors.NewUnsupportedConfigurationError("measurement", "only classic TIFF is supported")
	}

	ifdOffset := int64(order.Uint32(header[4:8]))
	if _, err := r.Seek(ifdOffset, io.SeekStart); err != nil {
		return nil, 0, 0, err
	}
	var countBuf [2]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, 0, 0, err
	}
	numEntries := int(order.Uint16(countBuf[:]))
	entries := make([]byte, numEntries*12)
	if _, err := io.ReadFull(r, entries); err != nil {
		return nil, 0, 0, err
	}

	var width, height int
	compression := compressionNone
	sampleFormat := sampleComplexInt
	bitsPerSample := 32
	var stripOffsets, stripByteCounts []uint32
	for i := 0; i < numEntries; i++ {
		entry := entries[i*12 : (i+1)*12]
		tag := int(order.Uint16(entry[0:2]))
		fieldType := int(order.Uint16(entry[2:4]))
		count := int(order.Uint32(entry[4:8]))

		switch tag {
		case tagImageWidth:
			width = int(entryValue(entry, fieldType, order))
		case tagImageLength:
			height = int(entryValue(entry, fieldType, order))
		case tagBitsPerSample:
			bitsPerSample = int(entryValue(entry, fieldType, order))
		case tagCompression:
			compression = int(entryValue(entry, fieldType, order))
		case tagSampleFormat:
			sampleFormat = int(entryValue(entry, fieldType, order))
		case tagTileWidth:
			return nil, 0, 0, errors.NewUnsupportedConfigurationError("measurement", "tiled TIFFs are not supported")
		case tagStripOffsets, tagStripByteCounts:
			values, err := entryArray(r, entry, fieldType, count, order)
			if err != nil {
				return nil, 0, 0, err
			}
			if tag == tagStripOffsets {
				stripOffsets = values
			} else {
				stripByteCounts = values
			}
		}
	}

	if compression != compressionNone {
		return nil, 0, 0, errors.NewUnsupportedConfigurationError("measurement", "compressed TIFFs are not supported")
	}
	if sampleFormat != sampleComplexInt || bitsPerSample != 32 {
		return nil, 0, 0, errors.NewUnsupportedConfigurationError("measurement",
			"only 32-bit complex integer samples are supported")
	}
	if width <= 0 || height <= 0 || len(stripOffsets) == 0 || len(stripOffsets) != len(stripByteCounts) {
		return nil, 0, 0, errors.NewStructuralMismatchError("measurement", "malformed TIFF directory")
	}

	samples := make([]complex64, 0, width*height)
	for i, offset := range stripOffsets {
		if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
			return nil, 0, 0, err
		}
		strip := make([]byte, stripByteCounts[i])
		if _, err := io.ReadFull(r, strip); err != nil {
			return nil, 0, 0, err
		}
		for pos := 0; pos+bytesPerSample <= len(strip); pos += bytesPerSample {
			re := int16(order.Uint16(strip[pos : pos+2]))
			im := int16(order.Uint16(strip[pos+2 : pos+4]))
			samples = append(samples, complex(float32(re), float32(im)))
		}
	}
	if len(samples) != width*height {
		return nil, 0, 0, errors.NewStructuralMismatchError("measurement", "TIFF strips do not cover the image")
	}
	return samples, width, height, nil
}

// entryValue decodes an inline short or long IFD value.
func entryValue(entry []byte, fieldType int, order binary.ByteOrder) uint32 {
	if fieldType == typeShort {
		return uint32(order.Uint16(entry[8:10]))
	}
	return order.Uint32(entry[8:12])
}

// entryArray decodes a short or long IFD value array, inline or external.
func entryArray(r io.ReadSeeker, entry []byte, fieldType, count int, order binary.ByteOrder) ([]uint32, error) {
	elemSize := 4
	if fieldType == typeShort {
		elemSize = 2
	}
	raw := entry[8:12]
	if count*elemSize > 4 {
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		defer r.Seek(pos, io.SeekStart)
		if _, err := r.Seek(int64(order.Uint32(entry[8:12])), io.SeekStart); err != nil {
			return nil, err
		}
		raw = make([]byte, count*elemSize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
	}
	values := make([]uint32, count)
	for i := 0; i < count; i++ {
		if fieldType == typeShort {
			values[i] = uint32(order.Uint16(raw[i*2 : i*2+2]))
		} else {
			values[i] = order.Uint32(raw[i*4 : i*4+4])
		}
	}
	return values, nil
}

// tiffWriter writes the assembled raster as a little-endian GeoTIFF with one
// strip per burst, so each burst's byte offset is its strip offset. Ground
// control points are stored as model tiepoints referencing WGS84.
type tiffWriter struct {
	w          io.Writer
	width      int
	rowsPer    int
	numStrips  int
	stripBytes int
	dataOffset int64
	written    int
	buf        []byte
}

type ifdEntry struct {
	tag       uint16
	fieldType uint16
	count     uint32
	value     uint32
}

func newTIFFWriter(w io.Writer, width, rowsPerStrip, numStrips int, gcps []annotation.GeoPoint) (*tiffWriter, error) {
	t := &tiffWriter{
		w:          w,
		width:      width,
		rowsPer:    rowsPerStrip,
		numStrips:  numStrips,
		stripBytes: width * rowsPerStrip * bytesPerSample,
	}
	if err := t.writeHeader(gcps); err != nil {
		return nil, err
	}
	return t, nil
}

// writeHeader lays out and writes the header, directory, and external arrays.
// All sizes are known up front, so strip offsets can be computed before any
// pixel data is written.
func (t *tiffWriter) writeHeader(gcps []annotation.GeoPoint) error {
	geoKeys := []uint16{
		1, 1, 0, 3,
		1024, 0, 1, 2, // model type: geographic
		1025, 0, 1, 1, // raster type: pixel is area
		2048, 0, 1, 4326, // geodetic CRS: WGS84
	}

	numTags := 10
	if len(gcps) > 0 {
		numTags += 2
	}
	ifdSize := 2 + numTags*12 + 4
	extOffset := int64(8 + ifdSize)

	// External arrays follow the directory in tag order.
	offsetsAt, extOffset := reserve(extOffset, arraySize(typeLong, t.numStrips))
	countsAt, extOffset := reserve(extOffset, arraySize(typeLong, t.numStrips))
	tiepointsAt, extOffset := reserve(extOffset, arraySize(typeDouble, 6*len(gcps)))
	geoKeysAt, extOffset := reserve(extOffset, arraySize(typeShort, len(geoKeys)))
	t.dataOffset = (extOffset + 1) &^ 1

	entries := []ifdEntry{
		{tagImageWidth, typeLong, 1, uint32(t.width)},
		{tagImageLength, typeLong, 1, uint32(t.rowsPer * t.numStrips)},
		{tagBitsPerSample, typeShort, 1, 32},
		{tagCompression, typeShort, 1, compressionNone},
		{tagPhotometric, typeShort, 1, 1},
		{tagStripOffsets, typeLong, uint32(t.numStrips), t.stripOffsetValue(offsetsAt, 0)},
		{tagSamplesPerPixel, typeShort, 1, 1},
		{tagRowsPerStrip, typeLong, 1, uint32(t.rowsPer)},
		{tagStripByteCounts, typeLong, uint32(t.numStrips), t.stripCountValue(countsAt)},
		{tagSampleFormat, typeShort, 1, sampleComplexInt},
	}
	if len(gcps) > 0 {
		entries = append(entries,
			ifdEntry{tagModelTiepoint, typeDouble, uint32(6 * len(gcps)), uint32(tiepointsAt)},
			ifdEntry{tagGeoKeyDirectory, typeShort, uint32(len(geoKeys)), uint32(geoKeysAt)},
		)
	}

	buf := make([]byte, 0, int(t.dataOffset))
	le := binary.LittleEndian
	buf = append(buf, 'I', 'I')
	buf = le.AppendUint16(buf, 42)
	buf = le.AppendUint32(buf, 8)

	buf = le.AppendUint16(buf, uint16(len(entries)))
	for _, entry := range entries {
		buf = le.AppendUint16(buf, entry.tag)
		buf = le.AppendUint16(buf, entry.fieldType)
		buf = le.AppendUint32(buf, entry.count)
		buf = le.AppendUint32(buf, entry.value)
	}
	buf = le.AppendUint32(buf, 0) // no next IFD

	if t.numStrips > 1 {
		for i := 0; i < t.numStrips; i++ {
			buf = le.AppendUint32(buf, uint32(t.stripOffset(i)))
		}
		for i := 0; i < t.numStrips; i++ {
			buf = le.AppendUint32(buf, uint32(t.stripBytes))
		}
	}
	for _, gcp := range gcps {
		for _, v := range []float64{
			float64(gcp.Pixel), float64(gcp.Line), 0,
			gcp.Longitude, gcp.Latitude, gcp.Height,
		} {
			buf = le.AppendUint64(buf, math.Float64bits(v))
		}
	}
	for _, key := range geoKeys {
		buf = le.AppendUint16(buf, key)
	}
	for int64(len(buf)) < t.dataOffset {
		buf = append(buf, 0)
	}

	_, err := t.w.Write(buf)
	return err
}

// stripOffset returns the byte offset of strip i in the output file.
func (t *tiffWriter) stripOffset(i int) int64 {
	return t.dataOffset + int64(i)*int64(t.stripBytes)
}

func (t *tiffWriter) stripOffsetValue(external int64, first int) uint32 {
	if t.numStrips == 1 {
		return uint32(t.stripOffset(first))
	}
	return uint32(external)
}

func (t *tiffWriter) stripCountValue(external int64) uint32 {
	if t.numStrips == 1 {
		return uint32(t.stripBytes)
	}
	return uint32(external)
}

// writeStrip encodes and writes one burst's samples, returning the strip's
// byte offset.
func (t *tiffWriter) writeStrip(samples []complex64) (int64, error) {
	if t.written >= t.numStrips {
		return 0, errors.NewStructuralMismatchError("measurement", "more bursts than strips")
	}
	if cap(t.buf) < t.stripBytes {
		t.buf = make([]byte, 0, t.stripBytes)
	}
	buf := t.buf[:0]
	le := binary.LittleEndian
	for _, sample := range samples {
		buf = le.AppendUint16(buf, uint16(int16(real(sample))))
		buf = le.AppendUint16(buf, uint16(int16(imag(sample))))
	}
	t.buf = buf

	offset := t.stripOffset(t.written)
	if _, err := t.w.Write(buf); err != nil {
		return 0, err
	}
	t.written++
	return offset, nil
}

// finish verifies every strip was written.
func (t *tiffWriter) finish() error {
	if t.written != t.numStrips {
		return errors.NewStructuralMismatchError("measurement",
			fmt.Sprintf("wrote %d strips, expected %d", t.written, t.numStrips))
	}
	return nil
}

// reserve advances an offset by size, returning the reserved position. A zero
// size reserves nothing.
func reserve(offset, size int64) (int64, int64) {
	if size == 0 {
		return 0, offset
	}
	return offset, offset + size
}

// arraySize returns the external byte size of a value array, or zero when it
// fits inline in the directory entry.
func arraySize(fieldType, count int) int64 {
	if count == 0 {
		return 0
	}
	elemSize := int64(4)
	switch fieldType {
	case typeShort:
		elemSize = 2
	case typeDouble:
		elemSize = 8
	}
	size := elemSize * int64(count)
	if size <= 4 {
		return 0
	}
	return size
}
