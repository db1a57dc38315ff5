package hashes

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// crc16Polynomial is the reflected form of x^16 + x^15 + x^2 + 1, the
// polynomial of CRC-16/ARC.
const crc16Polynomial = 0xA001

var crc16Table = makeCRC16Table()

func makeCRC16Table() *[256]uint16 {
	table := new([256]uint16)
	for i := range table {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 == 1 {
				crc = (crc >> 1) ^ crc16Polynomial
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRC16 returns the CRC-16/ARC checksum of data.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc16Table[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

// TruncatedHash shortens a hash to its CRC-16 checksum. Blocks commit to
// their static reward transaction this way.
func TruncatedHash(hash externalapi.DomainHash) uint16 {
	return CRC16(hash[:])
}
