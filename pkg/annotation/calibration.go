package annotation

import (
	"github.com/beevik/etree"
	version "github.com/hashicorp/go-version"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// Calibration assembles the calibration annotation for one
// swath/polarization group.
type Calibration struct {
	*base

	calibrationInformation *etree.Element
	calibrationVectorList  *etree.Element
}

// NewCalibration creates a calibration annotation assembler.
func NewCalibration(burstInfos []*burst.Info, ipfVersion *version.Version, imageNumber int) (*Calibration, error) {
	b, err := newBase(burstInfos, burst.KindCalibration, ipfVersion, imageNumber)
	if err != nil {
		return nil, err
	}
	return &Calibration{base: b}, nil
}

// createCalibrationInformation copies the calibration information from the
// first source; it is constant across a merge group.
func (c *Calibration) createCalibrationInformation() error {
	info := c.inputs[0].FindElement("calibrationInformation")
	if info == nil {
		return errors.NewStructuralMismatchError("calibration", "missing calibrationInformation")
	}
	c.calibrationInformation = info.Copy()
	return nil
}

// createCalibrationVectorList merges the calibration vector list.
func (c *Calibration) createCalibrationVectorList() error {
	merged, err := c.mergeLists("calibrationVectorList", constants.SlowVaryingMergeBuffer, nil)
	if err != nil {
		return err
	}
	c.calibrationVectorList = merged
	return nil
}

// Assemble builds the calibration document.
func (c *Calibration) Assemble() error {
	if err := c.createADSHeader(); err != nil {
		return err
	}
	if err := c.createCalibrationInformation(); err != nil {
		return err
	}
	if err := c.createCalibrationVectorList(); err != nil {
		return err
	}

	c.setDocument("calibration", []*etree.Element{
		c.adsHeader,
		c.calibrationInformation,
		c.calibrationVectorList,
	})
	return nil
}
