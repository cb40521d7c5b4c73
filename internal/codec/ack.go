package codec

import "fmt"

// AckCode is the leading byte of every packet. Bit 1 says the incoming
// payload carries sensor values, bit 0 says the reply should carry values.
//
//	0  settings in, settings out
//	1  settings in, values out
//	2  values in,   settings out
//	3  values in,   values out
type AckCode byte

const (
	AckSettingsSettings AckCode = iota
	AckSettingsData
	AckDataSettings
	AckDataData
)

func NewAck(receivingData, sendingData bool) AckCode {
	var a AckCode
	if receivingData {
		a |= 0x02
	}
	if sendingData {
		a |= 0x01
	}
	return a
}

func ParseAck(b byte) (AckCode, error) {
	if b > byte(AckDataData) {
		return 0, fmt.Errorf("%w: 0x%02x", ErrBadAck, b)
	}
	return AckCode(b), nil
}

func (a AckCode) ReceivingData() bool { return a&0x02 != 0 }
func (a AckCode) SendingData() bool   { return a&0x01 != 0 }

func (a AckCode) String() string {
	in, out := "settings", "settings"
	if a.ReceivingData() {
		in = "data"
	}
	if a.SendingData() {
		out = "data"
	}
	return fmt.Sprintf("%d(%s->%s)", byte(a), in, out)
}
