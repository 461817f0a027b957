package manifest

import (
	"fmt"
	"os"

	"github.com/asfadmin/burst2safe/pkg/errors"
)

// CRC16 computes the CCITT CRC16 (polynomial 0x1021, initial value 0xFFFF) of
// data as a four-character uppercase hex string. The resulting value is the
// SAFE product's unique identifier.
func CRC16(data []byte) string {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}

// CRC16File computes the CRC16 of a file's contents.
func CRC16File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.WrapIO("read", path, err)
	}
	return CRC16(data), nil
}
