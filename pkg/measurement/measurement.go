// Package measurement assembles the measurement raster for one
// swath/polarization group: burst rasters are concatenated in burst order into
// a single GeoTIFF, and the per-burst byte offsets and image statistics needed
// by the product annotation are captured along the way.
package measurement

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"math"
	"math/cmplx"
	"os"

	"github.com/asfadmin/burst2safe/pkg/annotation"
	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// RasterReader reads one burst's pixel samples. Implementations return
// length*width complex samples in row-major order.
type RasterReader interface {
	ReadBurst(info *burst.Info) ([]complex64, error)
}

// Measurement assembles the measurement raster for one swath/polarization
// group.
type Measurement struct {
	burstInfos []*burst.Info
	gcps       []annotation.GeoPoint
	length     int
	width      int
	totalLines int

	byteOffsets []int64
	dataMean    complex128
	dataStdDev  complex128

	path      string
	sizeBytes int64
	md5sum    string
}

// NewMeasurement creates a measurement assembler for a group whose shape
// information has been populated.
func NewMeasurement(burstInfos []*burst.Info, gcps []annotation.GeoPoint) (*Measurement, error) {
	if len(burstInfos) == 0 {
		return nil, errors.NewInvalidGroupError("", "", "no bursts provided")
	}
	first := burstInfos[0]
	if first.Length == 0 || first.Width == 0 {
		return nil, errors.NewInvalidGroupError(first.Swath, first.Polarization,
			"burst shape information has not been loaded")
	}
	for _, info := range burstInfos {
		if info.Length != first.Length || info.Width != first.Width {
			return nil, errors.NewInvalidGroupError(info.Swath, info.Polarization,
				"bursts in a group must share the same dimensions")
		}
	}
	return &Measurement{
		burstInfos: burstInfos,
		gcps:       gcps,
		length:     first.Length,
		width:      first.Width,
		totalLines: len(burstInfos) * first.Length,
	}, nil
}

// Write reads each burst's raster, concatenates them in group order into a
// GeoTIFF at path, and records the per-burst byte offsets, image statistics,
// size and MD5.
func (m *Measurement) Write(path string, reader RasterReader) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	defer file.Close()

	writer, err := newTIFFWriter(file, m.width, m.length, len(m.burstInfos), m.gcps)
	if err != nil {
		return err
	}

	var stats statsAccumulator
	m.byteOffsets = make([]int64, len(m.burstInfos))
	for i, info := range m.burstInfos {
		samples, err := reader.ReadBurst(info)
		if err != nil {
			return err
		}
		if len(samples) != m.length*m.width {
			return errors.NewStructuralMismatchError("measurement",
				"burst raster does not match the annotated dimensions")
		}
		stats.add(samples)
		offset, err := writer.writeStrip(samples)
		if err != nil {
			return errors.WrapIO("write", path, err)
		}
		m.byteOffsets[i] = offset
	}
	if err := writer.finish(); err != nil {
		return errors.WrapIO("write", path, err)
	}

	m.dataMean, m.dataStdDev = stats.results()

	if err := file.Close(); err != nil {
		return errors.WrapIO("close", path, err)
	}
	return m.record(path)
}

// record captures the written file's size and MD5 for the manifest.
func (m *Measurement) record(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.WrapIO("open", path, err)
	}
	defer file.Close()

	hash := md5.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return errors.WrapIO("read", path, err)
	}
	m.path = path
	m.sizeBytes = size
	m.md5sum = hex.EncodeToString(hash.Sum(nil))
	return nil
}

// ByteOffsets returns the byte offset of each burst within the written
// raster, in group order. Valid after Write.
func (m *Measurement) ByteOffsets() []int64 { return m.byteOffsets }

// DataMean returns the complex mean of the non-zero samples.
func (m *Measurement) DataMean() complex128 { return m.dataMean }

// DataStdDev returns the complex standard deviation of the non-zero samples.
func (m *Measurement) DataStdDev() complex128 { return m.dataStdDev }

// ManifestInfo returns the written raster's packaging values.
func (m *Measurement) ManifestInfo() annotation.ManifestInfo {
	return annotation.ManifestInfo{Kind: "measurement", Path: m.path, SizeBytes: m.sizeBytes, MD5: m.md5sum}
}

// statsAccumulator computes the mean and standard deviation of the non-zero
// samples without holding the full raster in memory. Zero samples are the
// no-data fill between valid lines and are excluded.
type statsAccumulator struct {
	count            int64
	sumRe, sumIm     float64
	sumReSq, sumImSq float64
}

func (s *statsAccumulator) add(samples []complex64) {
	for _, sample := range samples {
		if sample == 0 {
			continue
		}
		re := float64(real(sample))
		im := float64(imag(sample))
		s.count++
		s.sumRe += re
		s.sumIm += im
		s.sumReSq += re * re
		s.sumImSq += im * im
	}
}

func (s *statsAccumulator) results() (mean, stdDev complex128) {
	if s.count == 0 {
		return 0, 0
	}
	n := float64(s.count)
	meanRe := s.sumRe / n
	meanIm := s.sumIm / n
	varRe := s.sumReSq/n - meanRe*meanRe
	varIm := s.sumImSq/n - meanIm*meanIm
	mean = complex(meanRe, meanIm)
	stdDev = complex(math.Sqrt(math.Max(varRe, 0)), math.Sqrt(math.Max(varIm, 0)))
	if cmplx.IsNaN(stdDev) {
		stdDev = 0
	}
	return mean, stdDev
}
