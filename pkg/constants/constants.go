// Package constants provides shared constants used throughout the burst2safe
// codebase. The sensor timing values come from the Sentinel-1 Level 1 Detailed
// Algorithm Definition (MPC Nom: DI-MPC-IPFDPM, MPC Ref: MPC-0307,
// Issue/Revision: 2/4, Table 9-7).
package constants

import "time"

// Orbital timing constants used by burst ID calculation
const (
	// NominalOrbitalDuration is the time for one relative orbit: 12 days / 175 orbits
	NominalOrbitalDuration = 12 * 24 * 3600 * time.Second / 175

	// PreambleLengthIW is the IW mode preamble length
	PreambleLengthIW = 2299849 * time.Microsecond

	// PreambleLengthEW is the EW mode preamble length
	PreambleLengthEW = 2299970 * time.Microsecond

	// BeamCycleTimeIW is the IW mode beam cycle time
	BeamCycleTimeIW = 2758273 * time.Microsecond

	// BeamCycleTimeEW is the EW mode beam cycle time
	BeamCycleTimeEW = 3038376 * time.Microsecond

	// RelativeOrbitMax is the highest relative orbit number before wrapping to 1
	RelativeOrbitMax = 175
)

// Merge buffer constants define the time buffers applied when windowing
// repeating metadata lists to the group's sensing period
const (
	// DefaultMergeBuffer is the buffer for most annotation lists
	DefaultMergeBuffer = 3 * time.Second

	// SlowVaryingMergeBuffer is the generous buffer for orbit, attitude, noise,
	// and terrain-height lists whose entries vary slowly along track
	SlowVaryingMergeBuffer = 500 * time.Second

	// BurstListMergeBuffer is the near-zero buffer for the burst list, which
	// must align exactly to the group's burst boundaries
	BurstListMergeBuffer = 100 * time.Millisecond
)

// Group validation constants
const (
	// SwathOverlapTolerance is the maximum allowed burst-ID difference at each
	// end of adjacent swaths. Off-by-one edge effects from independent
	// per-swath numbering are tolerated; larger gaps mean the swaths do not
	// overlap. Applied to both IW and EW pending domain confirmation.
	SwathOverlapTolerance = 1
)

// IPF version gates for annotation sub-formats
const (
	// NoiseSplitVersion is the first IPF version producing separate range and
	// azimuth noise vector lists instead of a single noise vector list
	NoiseSplitVersion = "2.90"

	// RFIVersion is the first IPF version producing RFI annotations
	RFIVersion = "3.40"
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Download constants
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests
	DefaultHTTPTimeout = 30 * time.Second

	// DownloadTimeout is the timeout for a single burst raster download
	DownloadTimeout = 10 * time.Minute

	// MaxDownloadRetries is the maximum number of attempts per file
	MaxDownloadRetries = 3

	// MaxConcurrentDownloads is the maximum number of parallel downloads
	MaxConcurrentDownloads = 5
)

// TimeLayout is the timestamp layout used by Sentinel-1 annotation files.
// Timestamps are UTC without a zone designator and carry microseconds.
const TimeLayout = "2006-01-02T15:04:05.000000"
