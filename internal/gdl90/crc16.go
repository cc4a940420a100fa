package gdl90

// crc16 implements the message integrity check: CRC-16/CCITT (XMODEM form)
// with polynomial 0x1021 and initial value 0, computed over the unescaped
// payload (message ID + fields). Each data byte is XORed into the top of
// the accumulator before the shift-xor iterations, here folded into the
// standard table lookup.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

var crc16Table = func() [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if (crc & 0x8000) != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()
