package simple

import (
	"errors"

	"github.com/kulaginds/rohc/bitio"
	"github.com/kulaginds/rohc/crc"
	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
)

// ErrMalformed is returned by every decode function on a truncated or
// internally inconsistent packet.
var ErrMalformed = errors.New("simple: malformed packet")

const (
	discIRv1     = 0xFE // ROHCv1 IR, same discriminator profiles/rtp uses
	discIRDynV1  = 0xF8 // ROHCv1 IR-DYN
	discIRv2     = 0xFD // ROHCv2 IR, same discriminator profiles/v2iponly uses
	discCoRepair = 0xFB // ROHCv2 full dynamic-chain resend (this skeleton's FO packet)
)

// maxIPNest bounds the IP header nest depth decodeIPLayers will walk.
const maxIPNest = 2

// decodeIPLayers decodes a self-describing run of static IP chain
// entries: each entry's version nibble says whether to read an IPv4 or
// IPv6 static chain, and its Innermost flag says when the nest ends.
func decodeIPLayers(r *bitio.Reader) ([]wire.IPLayer, error) {
	var layers []wire.IPLayer
	for i := 0; i < maxIPNest; i++ {
		version, err := r.Peek(4)
		if err != nil {
			return nil, err
		}
		layer := wire.IPLayer{Version: int(version)}
		switch version {
		case 4:
			layer.V4, err = wire.DecodeStaticIPv4(r)
			if err != nil {
				return nil, err
			}
			layers = append(layers, layer)
			if layer.V4.Innermost {
				return layers, nil
			}
		case 6:
			layer.V6, err = wire.DecodeStaticIPv6(r)
			if err != nil {
				return nil, err
			}
			layers = append(layers, layer)
			if layer.V6.Innermost {
				return layers, nil
			}
		default:
			return nil, ErrMalformed
		}
	}
	return nil, ErrMalformed
}

func cloneIPLayers(in []wire.IPLayer) []wire.IPLayer {
	return append([]wire.IPLayer(nil), in...)
}

// staticChainBytes writes every static chain entry: IP nest, then UDP if
// variant.hasUDP.
func staticChainBytes(w *bitio.Writer, pkt *wire.Packet, v variant) error {
	for _, layer := range pkt.IPLayers {
		var err error
		if layer.Version == 4 {
			err = wire.EncodeStaticIPv4(w, layer.V4)
		} else {
			err = wire.EncodeStaticIPv6(w, layer.V6)
		}
		if err != nil {
			return err
		}
	}
	if v.hasUDP && pkt.UDP != nil {
		return wire.EncodeStaticUDP(w, *pkt.UDP)
	}
	return nil
}

// flowIPID bundles one IPv4 layer's IP-ID value and believed behavior,
// positionally paired with pkt.IPLayers' IPv4 entries.
type flowIPID struct {
	value    uint16
	behavior ipid.Behavior
}

// dynamicChainBytes writes the IPv4 dynamic entries (IPv6 layers carry
// no dynamic entry: wire has no DynamicIPv6 codec, matching
// profiles/rtp's same scoping decision), then UDP dynamic if hasUDP.
func dynamicChainBytes(w *bitio.Writer, pkt *wire.Packet, ids []flowIPID, v variant) error {
	idIdx := 0
	for _, layer := range pkt.IPLayers {
		if layer.Version != 4 {
			continue
		}
		var fid flowIPID
		if idIdx < len(ids) {
			fid = ids[idIdx]
		}
		idIdx++
		d := wire.DynamicIPv4{
			DF:       layer.V4.DF,
			Behavior: fid.behavior,
			ToS:      layer.V4.ToS,
			TTL:      layer.V4.TTL,
			IPID:     fid.value,
		}
		if err := wire.EncodeDynamicIPv4(w, d); err != nil {
			return err
		}
	}
	if v.hasUDP && pkt.UDP != nil {
		return wire.EncodeDynamicUDP(w, *pkt.UDP)
	}
	return nil
}

// irBody writes the profile byte, static chain, and dynamic chain shared
// by encodeIR and decodeIR's CRC recomputation.
func irBody(id profile.ID, pkt *wire.Packet, ids []flowIPID, v variant) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.Write(uint32(id)&0xFF, 8); err != nil {
		return nil, err
	}
	if err := staticChainBytes(w, pkt, v); err != nil {
		return nil, err
	}
	if err := dynamicChainBytes(w, pkt, ids, v); err != nil {
		return nil, err
	}
	w.AlignByte()
	return w.Bytes(), nil
}

// encodeIR writes a full IR packet: discriminator (ROHCv1 0xFE or ROHCv2
// 0xFD), profile byte, static chain, dynamic chain, CRC-8.
func encodeIR(id profile.ID, pkt *wire.Packet, ids []flowIPID, v variant) ([]byte, error) {
	body, err := irBody(id, pkt, ids, v)
	if err != nil {
		return nil, err
	}
	sum := crc.CRC8.Calculate(body)

	disc := uint32(discIRv1)
	if v.isV2 {
		disc = discIRv2
	}
	w := bitio.NewWriter()
	if err := w.Write(disc, 8); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(body); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(sum), 8); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// decodeIR parses a full IR packet, returning the reconstructed packet
// and the IPv4 IP-ID fields observed (positionally paired with the
// packet's IPv4 layers).
func decodeIR(data []byte, v variant) (*wire.Packet, []flowIPID, error) {
	if len(data) < 2 {
		return nil, nil, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err := r.Read(8); err != nil { // discriminator
		return nil, nil, err
	}
	profByte, err := r.Read(8)
	if err != nil {
		return nil, nil, err
	}
	id := resolveID(uint8(profByte), v.isV2)

	layers, err := decodeIPLayers(r)
	if err != nil {
		return nil, nil, err
	}
	pkt := &wire.Packet{IPLayers: layers}
	if v.hasUDP {
		udp, err := wire.DecodeStaticUDP(r)
		if err != nil {
			return nil, nil, err
		}
		pkt.UDP = &udp
	}

	ids, err := decodeDynamicChain(r, pkt, v)
	if err != nil {
		return nil, nil, err
	}

	r.AlignByte()
	crcByte, err := r.Read(8)
	if err != nil {
		return nil, nil, err
	}
	body, err := irBody(id, pkt, ids, v)
	if err != nil {
		return nil, nil, err
	}
	if crc.CRC8.Calculate(body) != uint8(crcByte) {
		return nil, nil, ErrMalformed
	}
	return pkt, ids, nil
}

func decodeDynamicChain(r *bitio.Reader, pkt *wire.Packet, v variant) ([]flowIPID, error) {
	ids := make([]flowIPID, 0, len(pkt.IPLayers))
	for i := range pkt.IPLayers {
		if pkt.IPLayers[i].Version != 4 {
			continue
		}
		d, err := wire.DecodeDynamicIPv4(r)
		if err != nil {
			return nil, err
		}
		pkt.IPLayers[i].V4.ToS = d.ToS
		pkt.IPLayers[i].V4.TTL = d.TTL
		pkt.IPLayers[i].V4.DF = d.DF
		ids = append(ids, flowIPID{value: d.IPID, behavior: d.Behavior})
	}
	if v.hasUDP {
		d, err := wire.DecodeDynamicUDP(r)
		if err != nil {
			return nil, err
		}
		udp := *pkt.UDP
		udp.Checksum = d.Checksum
		udp.ChecksumUsed = d.ChecksumUsed
		pkt.UDP = &udp
	}
	return ids, nil
}

// decodeStaticOnly parses just the discriminator, profile byte, and
// static chain of an IR packet, for building a fresh DecompContext.
func decodeStaticOnly(data []byte, v variant) (*wire.Packet, error) {
	if len(data) < 2 {
		return nil, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err := r.Read(8); err != nil {
		return nil, err
	}
	if _, err := r.Read(8); err != nil {
		return nil, err
	}
	layers, err := decodeIPLayers(r)
	if err != nil {
		return nil, err
	}
	pkt := &wire.Packet{IPLayers: layers}
	if v.hasUDP {
		udp, err := wire.DecodeStaticUDP(r)
		if err != nil {
			return nil, err
		}
		pkt.UDP = &udp
	}
	return pkt, nil
}

// encodeFO writes this skeleton's steady-state packet: a full dynamic-
// chain resend (IR-DYN for ROHCv1 IDs, co_repair for ROHCv2 IDs), CRC-8
// over the profile byte plus dynamic chain. There is no delta-coded
// variant: this package trades compression ratio for a minimal,
// always-correct implementation of profiles spec.md's Non-goals leave
// "in detail" out of scope.
func encodeFO(id profile.ID, pkt *wire.Packet, ids []flowIPID, v variant) ([]byte, error) {
	dw := bitio.NewWriter()
	if err := dw.Write(uint32(id)&0xFF, 8); err != nil {
		return nil, err
	}
	if err := dynamicChainBytes(dw, pkt, ids, v); err != nil {
		return nil, err
	}
	dw.AlignByte()
	body := dw.Bytes()
	sum := crc.CRC8.Calculate(body)

	disc := uint32(discIRDynV1)
	if v.isV2 {
		disc = discCoRepair
	}
	w := bitio.NewWriter()
	if err := w.Write(disc, 8); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(body); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(sum), 8); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// decodeFO parses an FO-state packet against a known static snapshot.
func decodeFO(data []byte, static *wire.Packet, v variant) (*wire.Packet, []flowIPID, error) {
	if len(data) < 2 {
		return nil, nil, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err := r.Read(8); err != nil { // discriminator
		return nil, nil, err
	}
	profByte, err := r.Read(8)
	if err != nil {
		return nil, nil, err
	}
	id := resolveID(uint8(profByte), v.isV2)

	pkt := &wire.Packet{IPLayers: cloneIPLayers(static.IPLayers)}
	if static.UDP != nil {
		udp := *static.UDP
		pkt.UDP = &udp
	}
	ids, err := decodeDynamicChain(r, pkt, v)
	if err != nil {
		return nil, nil, err
	}

	r.AlignByte()
	crcByte, err := r.Read(8)
	if err != nil {
		return nil, nil, err
	}
	dw := bitio.NewWriter()
	if err := dw.Write(uint32(id)&0xFF, 8); err != nil {
		return nil, nil, err
	}
	if err := dynamicChainBytes(dw, pkt, ids, v); err != nil {
		return nil, nil, err
	}
	dw.AlignByte()
	if crc.CRC8.Calculate(dw.Bytes()) != uint8(crcByte) {
		return nil, nil, ErrCRCFailed
	}
	return pkt, ids, nil
}

// resolveID reconstructs the full profile.ID from the one-byte wire
// encoding and which IR discriminator family carried it.
func resolveID(b uint8, isV2 bool) profile.ID {
	if isV2 {
		return profile.ID(0x0100 | uint16(b))
	}
	return profile.ID(b)
}
