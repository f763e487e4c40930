// Package feedback implements the O/R-mode feedback channel from RFC
// 3095 §5.7.6: FEEDBACK-1 (1-byte positive ACK) and FEEDBACK-2
// (multi-byte, ACK/NACK/STATIC-NACK plus an option chain), travelling
// piggybacked on the reverse channel from decompressor back to
// compressor.
package feedback

import (
	"errors"

	"github.com/kulaginds/rohc/bitio"
)

// Kind distinguishes the three feedback outcomes FEEDBACK-2 carries.
type Kind int

const (
	ACK Kind = iota
	NACK
	StaticNACK
)

// OptionType enumerates the FEEDBACK-2 option chain entries this module
// implements: CRC, SN, and Time, each appended after the base
// ACK/NACK/STATIC-NACK byte per RFC 3095 §5.7.6.3.
type OptionType uint8

const (
	OptionCRC    OptionType = 1
	OptionSN     OptionType = 2
	OptionTime   OptionType = 3
)

// Option is one FEEDBACK-2 option chain entry: a type, and a
// type-specific payload.
type Option struct {
	Type OptionType
	// CRC holds the header CRC of the packet being acknowledged, when
	// Type == OptionCRC.
	CRC uint8
	// SN holds the low bits of the MSN being acknowledged, when
	// Type == OptionSN.
	SN uint16
	// TimeGapMs holds an inter-packet arrival gap in milliseconds, when
	// Type == OptionTime.
	TimeGapMs uint16
}

// Feedback2 is the decoded form of a FEEDBACK-2 message.
type Feedback2 struct {
	Kind    Kind
	MSNLSBs uint16 // low bits of the MSN this feedback concerns
	Options []Option
}

var ErrMalformed = errors.New("feedback: malformed feedback message")

// EncodeFeedback1 returns the 1-byte positive-ACK form.
func EncodeFeedback1(msnLSB uint8) []byte {
	return []byte{msnLSB}
}

// DecodeFeedback1 parses a 1-byte FEEDBACK-1 message.
func DecodeFeedback1(b []byte) (msnLSB uint8, err error) {
	if len(b) != 1 {
		return 0, ErrMalformed
	}
	return b[0], nil
}

// kindCode/codeToKind map Kind to the 2-bit ACK/NACK/STATIC-NACK code
// RFC 3095 §5.7.6.1 assigns within the FEEDBACK-2 base octet.
func kindCode(k Kind) uint32 {
	switch k {
	case ACK:
		return 0
	case NACK:
		return 1
	default:
		return 2
	}
}

func codeToKind(c uint32) (Kind, error) {
	switch c {
	case 0:
		return ACK, nil
	case 1:
		return NACK, nil
	case 2:
		return StaticNACK, nil
	default:
		return 0, ErrMalformed
	}
}

// EncodeFeedback2 writes a FEEDBACK-2 message: a 2-bit kind, 14-bit MSN
// LSBs, followed by the option chain (each option is a type byte, a
// length byte, then its payload).
func EncodeFeedback2(fb Feedback2) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.Write(kindCode(fb.Kind), 2); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(fb.MSNLSBs)&0x3FFF, 14); err != nil {
		return nil, err
	}
	w.AlignByte()

	for _, opt := range fb.Options {
		payload, err := encodeOptionPayload(opt)
		if err != nil {
			return nil, err
		}
		if err := w.WriteBytes([]byte{byte(opt.Type), byte(len(payload))}); err != nil {
			return nil, err
		}
		if err := w.WriteBytes(payload); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func encodeOptionPayload(opt Option) ([]byte, error) {
	switch opt.Type {
	case OptionCRC:
		return []byte{opt.CRC}, nil
	case OptionSN:
		return []byte{byte(opt.SN >> 8), byte(opt.SN)}, nil
	case OptionTime:
		return []byte{byte(opt.TimeGapMs >> 8), byte(opt.TimeGapMs)}, nil
	default:
		return nil, errors.New("feedback: unknown option type")
	}
}

// DecodeFeedback2 parses a FEEDBACK-2 message.
func DecodeFeedback2(data []byte) (Feedback2, error) {
	var fb Feedback2
	if len(data) < 2 {
		return fb, ErrMalformed
	}

	r := bitio.NewReader(data)
	kindBits, err := r.Read(2)
	if err != nil {
		return fb, err
	}
	kind, err := codeToKind(kindBits)
	if err != nil {
		return fb, err
	}
	fb.Kind = kind

	msn, err := r.Read(14)
	if err != nil {
		return fb, err
	}
	fb.MSNLSBs = uint16(msn)
	r.AlignByte()

	for r.BitsRemaining() >= 16 {
		typ, err := r.Read(8)
		if err != nil {
			return fb, err
		}
		length, err := r.Read(8)
		if err != nil {
			return fb, err
		}
		payload, err := r.ReadBytes(int(length))
		if err != nil {
			return fb, err
		}

		opt := Option{Type: OptionType(typ)}
		switch opt.Type {
		case OptionCRC:
			if len(payload) != 1 {
				return fb, ErrMalformed
			}
			opt.CRC = payload[0]
		case OptionSN:
			if len(payload) != 2 {
				return fb, ErrMalformed
			}
			opt.SN = uint16(payload[0])<<8 | uint16(payload[1])
		case OptionTime:
			if len(payload) != 2 {
				return fb, ErrMalformed
			}
			opt.TimeGapMs = uint16(payload[0])<<8 | uint16(payload[1])
		default:
			return fb, ErrMalformed
		}
		fb.Options = append(fb.Options, opt)
	}

	return fb, nil
}

// feedbackDiscriminator is the standalone feedback packet's leading
// octet (RFC 3095 §5.2.1): distinct from every IR/IR-DYN/UO/UOR/co_*
// discriminator this module's wire package recognizes.
const feedbackDiscriminator = 0b11110000

// EncodePacket wraps payload (the output of EncodeFeedback1 or
// EncodeFeedback2) in the standalone feedback packet framing so it can
// be piggybacked in front of a ROHC packet on the reverse channel. This
// module uses a single length byte rather than RFC 3095's SDVL size
// field: feedback payloads here never exceed 255 bytes.
func EncodePacket(payload []byte) ([]byte, error) {
	if len(payload) == 0 || len(payload) > 255 {
		return nil, ErrMalformed
	}
	out := make([]byte, 0, len(payload)+2)
	out = append(out, feedbackDiscriminator, byte(len(payload)))
	return append(out, payload...), nil
}

// DecodePacket peels one standalone feedback packet off the front of
// data, if present. ok is false when data does not begin with the
// feedback discriminator (the caller should treat data as an ordinary
// ROHC packet instead).
func DecodePacket(data []byte) (payload []byte, rest []byte, ok bool, err error) {
	if len(data) < 2 || data[0] != feedbackDiscriminator {
		return nil, data, false, nil
	}
	size := int(data[1])
	if len(data) < 2+size {
		return nil, nil, true, ErrMalformed
	}
	return data[2 : 2+size], data[2+size:], true, nil
}
