package handshake

// Packet-type tags, the first byte of every datagram.
const (
	PacketUnknown   = 0x00
	PacketHandshake = 0x01
	PacketData      = 0x02
)

// RecordType identifies a TLV record within a handshake message.
type RecordType uint8

const (
	RecordHandshakeType RecordType = iota
	RecordReplyCode
	RecordErrorDetail
	RecordFlags
	RecordMode
	RecordProtocolName

	// Protocol-specific slots bound by the ec25519-fhmqvc protocol.
	RecordSenderKey
	RecordRecipientKey
	RecordSenderHandshakeKey
	RecordRecipientHandshakeKey
	RecordT

	recordMax
)

// ReplyCode values carried in RecordReplyCode.
const (
	ReplySuccess uint8 = iota
	ReplyMandatoryMissing
	ReplyUnacceptableValue
)

// ProtocolName is carried in RecordProtocolName and checked before any key
// processing.
const ProtocolName = "ec25519-fhmqvc"
