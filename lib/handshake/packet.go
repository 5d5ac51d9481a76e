package handshake

import (
	"encoding/binary"

	"github.com/samber/oops"

	"github.com/blocktrron/fastd/lib/buffer"
	"github.com/blocktrron/fastd/lib/util/logger"
)

var log = logger.GetFastdLogger()

var (
	ErrTruncated       = oops.Errorf("truncated handshake packet")
	ErrDuplicateRecord = oops.Errorf("duplicate record in handshake packet")
	ErrNoType          = oops.Errorf("handshake packet carries no handshake type")
)

// headerBytes is the request id plus the two reserved bytes that precede the
// TLV stream.
const headerBytes = 3

// Handshake is a parsed handshake message.
type Handshake struct {
	ReqID uint8
	Type  uint8

	records [recordMax][]byte
	present [recordMax]bool
}

// Record returns the value of a record and whether it was present.
func (h *Handshake) Record(t RecordType) ([]byte, bool) {
	if t >= recordMax {
		return nil, false
	}
	return h.records[t], h.present[t]
}

// HasField reports whether a record is present with exactly the given length.
func (h *Handshake) HasField(t RecordType, length int) bool {
	v, ok := h.Record(t)
	return ok && len(v) == length
}

// Parse decodes the payload of a handshake datagram, excluding the leading
// packet-type byte. The returned Handshake aliases data.
func Parse(data []byte) (*Handshake, error) {
	if len(data) < headerBytes {
		return nil, ErrTruncated
	}

	h := &Handshake{ReqID: data[0]}
	tlv := data[headerBytes:]

	for len(tlv) > 0 {
		if len(tlv) < 3 {
			return nil, ErrTruncated
		}
		typ := RecordType(tlv[0])
		length := int(binary.LittleEndian.Uint16(tlv[1:3]))
		tlv = tlv[3:]
		if len(tlv) < length {
			return nil, ErrTruncated
		}
		value := tlv[:length]
		tlv = tlv[length:]

		if typ >= recordMax {
			// Unknown records are skipped for forward compatibility.
			log.WithFields(logger.Fields{
				"at":   "Parse",
				"type": uint8(typ),
			}).Debug("skipping unknown handshake record")
			continue
		}
		if h.present[typ] {
			return nil, ErrDuplicateRecord
		}
		h.records[typ] = value
		h.present[typ] = true
	}

	typ, ok := h.Record(RecordHandshakeType)
	if !ok || len(typ) != 1 {
		return nil, ErrNoType
	}
	h.Type = typ[0]

	return h, nil
}

// Builder assembles a handshake message.
type Builder struct {
	reqID   uint8
	types   []RecordType
	values  [][]byte
	present [recordMax]bool
	size    int
}

// NewInit starts a type-1 handshake message with a fresh request id.
func NewInit(reqID uint8) *Builder {
	b := &Builder{reqID: reqID}
	b.Add(RecordHandshakeType, []byte{1})
	b.Add(RecordMode, []byte{0})
	b.Add(RecordProtocolName, []byte(ProtocolName))
	return b
}

// NewReply starts a reply to a received message: the request id is mirrored,
// the handshake type is the received type plus one and a success reply code
// is attached.
func NewReply(h *Handshake) *Builder {
	b := &Builder{reqID: h.ReqID}
	b.Add(RecordHandshakeType, []byte{h.Type + 1})
	b.Add(RecordReplyCode, []byte{ReplySuccess})
	b.Add(RecordMode, []byte{0})
	b.Add(RecordProtocolName, []byte(ProtocolName))
	return b
}

// Add appends a record. Adding the same record type twice is a programmer
// error and panics.
func (b *Builder) Add(t RecordType, value []byte) *Builder {
	if b.present[t] {
		panic("handshake: record added twice")
	}
	b.present[t] = true
	b.types = append(b.types, t)
	b.values = append(b.values, value)
	b.size += 3 + len(value)
	return b
}

// Build serializes the message into a complete datagram, packet-type byte
// included. The caller owns the returned buffer.
func (b *Builder) Build() *buffer.Buffer {
	buf := buffer.New(1+headerBytes+b.size, 0)
	out := buf.Bytes()
	out[0] = PacketHandshake
	out[1] = b.reqID
	out[2] = 0
	out[3] = 0
	pos := 1 + headerBytes
	for i, t := range b.types {
		out[pos] = uint8(t)
		binary.LittleEndian.PutUint16(out[pos+1:pos+3], uint16(len(b.values[i])))
		copy(out[pos+3:], b.values[i])
		pos += 3 + len(b.values[i])
	}
	return buf
}
