package printer

import "github.com/sigurn/crc8"

// CRC8 is an MSB-first CRC-8 with no reflection and no final XOR.
type CRC8 struct {
	table *crc8.Table
}

// NewCRC8 builds the lookup table for poly, starting each checksum at init.
func NewCRC8(poly, init byte) *CRC8 {
	return &CRC8{table: crc8.MakeTable(crc8.Params{
		Poly: poly,
		Init: init,
		Name: "thermalprint",
	})}
}

// Checksum runs over all parts in order, as if they were one buffer.
func (c *CRC8) Checksum(parts ...[]byte) byte {
	crc := crc8.Init(c.table)
	for _, p := range parts {
		crc = crc8.Update(crc, p, c.table)
	}
	return crc8.Complete(crc, c.table)
}
