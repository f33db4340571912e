package pdu

// Alphabet is the character set of the user data.
type Alphabet int

const (
	GSM7 Alphabet = iota
	Data8Bit
	UCS2
)

func (a Alphabet) String() string {
	switch a {
	case GSM7:
		return "gsm7"
	case Data8Bit:
		return "8bit"
	case UCS2:
		return "ucs2"
	}
	return "unknown"
}

// AlphabetFromDCS returns the alphabet selected by a data coding scheme octet
// (GSM 03.38 section 4).
func AlphabetFromDCS(dcs byte) (Alphabet, error) {
	switch dcs >> 4 {
	case 0x0, 0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7:
		if dcs&0x20 != 0 {
			return 0, errorf("dcs", -1, ErrUnsupportedDCS)
		}
		switch (dcs >> 2) & 0x03 {
		case 0:
			return GSM7, nil
		case 1:
			return Data8Bit, nil
		case 2:
			return UCS2, nil
		}
	case 0xC, 0xD:
		return GSM7, nil
	case 0xE:
		return UCS2, nil
	case 0xF:
		if dcs&0x04 != 0 {
			return Data8Bit, nil
		}
		return GSM7, nil
	}
	return 0, errorf("dcs", -1, ErrUnsupportedDCS)
}
