package annotation

import (
	"github.com/beevik/etree"
	version "github.com/hashicorp/go-version"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// rfiVersion gates RFI annotations, which exist for IPF 3.40 onwards.
var rfiVersion = version.Must(version.NewVersion(constants.RFIVersion))

// SupportsRFI reports whether a source IPF version produces radio frequency
// interference annotations. Their absence for older versions is a
// conditional skip, not an error.
func SupportsRFI(ipfVersion *version.Version) bool {
	return ipfVersion.GreaterThanOrEqual(rfiVersion)
}

// RFI assembles the radio frequency interference report annotation for one
// swath/polarization group.
type RFI struct {
	*base

	mitigationApplied            *etree.Element
	detectionFromNoiseReportList *etree.Element
	burstReportList              *etree.Element
}

// NewRFI creates an RFI annotation assembler. Callers must check SupportsRFI
// before constructing one.
func NewRFI(burstInfos []*burst.Info, ipfVersion *version.Version, imageNumber int) (*RFI, error) {
	if !SupportsRFI(ipfVersion) {
		return nil, errors.NewUnsupportedConfigurationError(burst.KindRFI,
			"RFI annotations only exist for IPF version "+constants.RFIVersion+" onwards")
	}
	b, err := newBase(burstInfos, burst.KindRFI, ipfVersion, imageNumber)
	if err != nil {
		return nil, err
	}
	return &RFI{base: b}, nil
}

// createMitigationApplied copies the mitigation flag from the first source.
func (r *RFI) createMitigationApplied() error {
	applied := r.inputs[0].FindElement("rfiMitigationApplied")
	if applied == nil {
		return errors.NewStructuralMismatchError("rfi", "missing rfiMitigationApplied")
	}
	r.mitigationApplied = applied.Copy()
	return nil
}

// createDetectionFromNoiseReportList merges the noise-detection report list.
func (r *RFI) createDetectionFromNoiseReportList() error {
	merged, err := r.mergeLists("rfiDetectionFromNoiseReportList", constants.DefaultMergeBuffer, nil)
	if err != nil {
		return err
	}
	r.detectionFromNoiseReportList = merged
	return nil
}

// createBurstReportList merges the per-burst report list.
func (r *RFI) createBurstReportList() error {
	merged, err := r.mergeLists("rfiBurstReportList", constants.DefaultMergeBuffer, nil)
	if err != nil {
		return err
	}
	r.burstReportList = merged
	return nil
}

// Assemble builds the RFI document.
func (r *RFI) Assemble() error {
	if err := r.createADSHeader(); err != nil {
		return err
	}
	if err := r.createMitigationApplied(); err != nil {
		return err
	}
	if err := r.createDetectionFromNoiseReportList(); err != nil {
		return err
	}
	if err := r.createBurstReportList(); err != nil {
		return err
	}

	r.setDocument("rfi", []*etree.Element{
		r.adsHeader,
		r.mitigationApplied,
		r.detectionFromNoiseReportList,
		r.burstReportList,
	})
	return nil
}
