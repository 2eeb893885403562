package rcon

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/craftplane/craftplane/internal/core/domain"
)

// Source RCON framing: every packet is
//
//	[length int32][request id int32][type int32][body][0x00][0x00]
//
// little-endian, where length counts everything after itself. The same
// framing carries the auth handshake and command exchange.
const (
	packetTypeAuth         = 3
	packetTypeAuthResponse = 2
	packetTypeCommand      = 2
	packetTypeResponse     = 0

	// headerLen is id + type + the two trailing NULs.
	headerLen = 10

	// maxPayload bounds a single response body; the protocol itself caps
	// packets at 4096 but some servers overshoot slightly.
	maxPayload = 8192
)

type packet struct {
	ID   int32
	Type int32
	Body string
}

func writePacket(w io.Writer, p packet) error {
	length := int32(headerLen + len(p.Body))
	buf := make([]byte, 0, 4+length)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(length))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.ID))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Type))
	buf = append(buf, p.Body...)
	buf = append(buf, 0x00, 0x00)
	_, err := w.Write(buf)
	return err
}

func readPacket(r io.Reader) (packet, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return packet{}, err
	}
	if length < headerLen || length > maxPayload {
		return packet{}, fmt.Errorf("%w: bad frame length %d", domain.ErrProtocol, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return packet{}, fmt.Errorf("%w: truncated frame: %v", domain.ErrProtocol, err)
	}
	p := packet{
		ID:   int32(binary.LittleEndian.Uint32(body[0:4])),
		Type: int32(binary.LittleEndian.Uint32(body[4:8])),
	}
	if body[length-2] != 0x00 || body[length-1] != 0x00 {
		return packet{}, fmt.Errorf("%w: missing frame terminator", domain.ErrProtocol)
	}
	p.Body = string(body[8 : length-2])
	return p, nil
}
