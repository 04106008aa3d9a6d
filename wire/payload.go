package wire

import "encoding/binary"

// STPPayload is the 6-byte payload of an STP frame (spec §6).
type STPPayload struct {
	Root       uint16
	PathLength uint16
	Origin     uint16
}

const stpPayloadSize = 6

func EncodeSTP(p STPPayload) []byte {
	buf := make([]byte, stpPayloadSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.Root)
	binary.LittleEndian.PutUint16(buf[2:4], p.PathLength)
	binary.LittleEndian.PutUint16(buf[4:6], p.Origin)
	return buf
}

func DecodeSTP(buf []byte) (STPPayload, error) {
	if len(buf) < stpPayloadSize {
		return STPPayload{}, ErrMalformedFrame{Reason: "STP payload shorter than 6 bytes"}
	}
	return STPPayload{
		Root:       binary.LittleEndian.Uint16(buf[0:2]),
		PathLength: binary.LittleEndian.Uint16(buf[2:4]),
		Origin:     binary.LittleEndian.Uint16(buf[4:6]),
	}, nil
}

// LSAPayload is the origin/neighbor-list payload of an LSA frame.
type LSAPayload struct {
	Origin    uint16
	Neighbors []uint16
}

const lsaHeaderSize = 4

func EncodeLSA(p LSAPayload) []byte {
	buf := make([]byte, lsaHeaderSize+2*len(p.Neighbors))
	binary.LittleEndian.PutUint16(buf[0:2], p.Origin)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(p.Neighbors)))
	for i, n := range p.Neighbors {
		off := lsaHeaderSize + 2*i
		binary.LittleEndian.PutUint16(buf[off:off+2], n)
	}
	return buf
}

func DecodeLSA(buf []byte) (LSAPayload, error) {
	if len(buf) < lsaHeaderSize {
		return LSAPayload{}, ErrMalformedFrame{Reason: "LSA payload shorter than 4 bytes"}
	}
	origin := binary.LittleEndian.Uint16(buf[0:2])
	count := binary.LittleEndian.Uint16(buf[2:4])
	want := lsaHeaderSize + 2*int(count)
	if len(buf) < want {
		return LSAPayload{}, ErrMalformedFrame{Reason: "LSA payload shorter than declared neighbor_count"}
	}
	neighbors := make([]uint16, count)
	for i := range neighbors {
		off := lsaHeaderSize + 2*i
		neighbors[i] = binary.LittleEndian.Uint16(buf[off : off+2])
	}
	return LSAPayload{Origin: origin, Neighbors: neighbors}, nil
}

// RoutingHeader is the common prefix of DATA and PING payloads: a route
// length, a current hop index, and the route itself (spec §3 "Routing
// header", §6).
type RoutingHeader struct {
	RouteLength uint16
	HopIndex    uint16
	Route       []uint16
}

const routingHeaderSize = 4

func encodeRoutingHeader(buf []byte, h RoutingHeader) int {
	binary.LittleEndian.PutUint16(buf[0:2], h.RouteLength)
	binary.LittleEndian.PutUint16(buf[2:4], h.HopIndex)
	off := routingHeaderSize
	for _, hop := range h.Route {
		binary.LittleEndian.PutUint16(buf[off:off+2], hop)
		off += 2
	}
	return off
}

func decodeRoutingHeader(buf []byte) (RoutingHeader, int, error) {
	if len(buf) < routingHeaderSize {
		return RoutingHeader{}, 0, ErrMalformedFrame{Reason: "routing header shorter than 4 bytes"}
	}
	h := RoutingHeader{
		RouteLength: binary.LittleEndian.Uint16(buf[0:2]),
		HopIndex:    binary.LittleEndian.Uint16(buf[2:4]),
	}
	want := routingHeaderSize + 2*int(h.RouteLength)
	if len(buf) < want {
		return RoutingHeader{}, 0, ErrMalformedFrame{Reason: "routing header shorter than declared route_length"}
	}
	h.Route = make([]uint16, h.RouteLength)
	for i := range h.Route {
		off := routingHeaderSize + 2*i
		h.Route[i] = binary.LittleEndian.Uint16(buf[off : off+2])
	}
	return h, want, nil
}

// DataPayload is a routing header followed by the verbatim user payload.
type DataPayload struct {
	Header  RoutingHeader
	Message []byte
}

func EncodeData(p DataPayload) []byte {
	buf := make([]byte, routingHeaderSize+2*len(p.Header.Route)+len(p.Message))
	off := encodeRoutingHeader(buf, p.Header)
	copy(buf[off:], p.Message)
	return buf
}

func DecodeData(buf []byte) (DataPayload, error) {
	h, off, err := decodeRoutingHeader(buf)
	if err != nil {
		return DataPayload{}, err
	}
	message := make([]byte, len(buf)-off)
	copy(message, buf[off:])
	return DataPayload{Header: h, Message: message}, nil
}

// PingDirection distinguishes a ping request from its response.
type PingDirection uint8

const (
	PingRequest  PingDirection = 0
	PingResponse PingDirection = 1
)

// PingPayload is a routing header followed by direction, 3 reserved bytes,
// and a 64-bit microsecond send time (spec §6).
type PingPayload struct {
	Header      RoutingHeader
	Direction   PingDirection
	SendTimeUs  uint64
}

const pingFixedSize = 1 + 3 + 8

func EncodePing(p PingPayload) []byte {
	buf := make([]byte, routingHeaderSize+2*len(p.Header.Route)+pingFixedSize)
	off := encodeRoutingHeader(buf, p.Header)
	buf[off] = byte(p.Direction)
	// buf[off+1:off+4] are reserved, left zero.
	binary.LittleEndian.PutUint64(buf[off+4:off+12], p.SendTimeUs)
	return buf
}

func DecodePing(buf []byte) (PingPayload, error) {
	h, off, err := decodeRoutingHeader(buf)
	if err != nil {
		return PingPayload{}, err
	}
	if len(buf)-off < pingFixedSize {
		return PingPayload{}, ErrMalformedFrame{Reason: "ping payload shorter than direction+reserved+send_time"}
	}
	return PingPayload{
		Header:     h,
		Direction:  PingDirection(buf[off]),
		SendTimeUs: binary.LittleEndian.Uint64(buf[off+4 : off+12]),
	}, nil
}
