package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const (
	formatVersionCurrent = 1

	flagActive = 1 << 0
)

// ErrCorrupt is returned when a stored session blob cannot be decoded.
var ErrCorrupt = errors.New("session: corrupt record")

// Encode serialises s (without its id, which is the key) as:
//
//	u8 version | u8 len, principal | u8 len, role | u8 len, ip |
//	u16 len, user agent | u8 flags | i64 created ms | i64 last activity ms
func Encode(s *Session) ([]byte, error) {
	if len(s.PrincipalID) > 255 {
		return nil, errors.New("session: principal id too long")
	}
	if len(s.Role) > 255 {
		return nil, errors.New("session: role too long")
	}
	if len(s.ClientIP) > 255 {
		return nil, errors.New("session: client ip too long")
	}
	if len(s.UserAgent) > 0xFFFF {
		return nil, errors.New("session: user agent too long")
	}

	var buf bytes.Buffer
	buf.Grow(4 + len(s.PrincipalID) + len(s.Role) + len(s.ClientIP) + 2 + len(s.UserAgent) + 17)

	buf.WriteByte(formatVersionCurrent)
	writeShort(&buf, s.PrincipalID)
	writeShort(&buf, s.Role)
	writeShort(&buf, s.ClientIP)

	var ua [2]byte
	binary.BigEndian.PutUint16(ua[:], uint16(len(s.UserAgent)))
	buf.Write(ua[:])
	buf.WriteString(s.UserAgent)

	var flags byte
	if s.Active {
		flags |= flagActive
	}
	buf.WriteByte(flags)

	var ts [16]byte
	binary.BigEndian.PutUint64(ts[0:8], uint64(s.CreatedAt.UnixMilli()))
	binary.BigEndian.PutUint64(ts[8:16], uint64(s.LastActivity.UnixMilli()))
	buf.Write(ts[:])

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*Session, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil || version != formatVersionCurrent {
		return nil, ErrCorrupt
	}

	s := &Session{}
	if s.PrincipalID, err = readShort(r); err != nil {
		return nil, ErrCorrupt
	}
	if s.Role, err = readShort(r); err != nil {
		return nil, ErrCorrupt
	}
	if s.ClientIP, err = readShort(r); err != nil {
		return nil, ErrCorrupt
	}

	var uaLen uint16
	if err := binary.Read(r, binary.BigEndian, &uaLen); err != nil {
		return nil, ErrCorrupt
	}
	ua := make([]byte, uaLen)
	if _, err := io.ReadFull(r, ua); err != nil {
		return nil, ErrCorrupt
	}
	s.UserAgent = string(ua)

	flags, err := r.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	s.Active = flags&flagActive != 0

	var created, last int64
	if err := binary.Read(r, binary.BigEndian, &created); err != nil {
		return nil, ErrCorrupt
	}
	if err := binary.Read(r, binary.BigEndian, &last); err != nil {
		return nil, ErrCorrupt
	}
	if r.Len() != 0 {
		return nil, ErrCorrupt
	}
	s.CreatedAt = time.UnixMilli(created)
	s.LastActivity = time.UnixMilli(last)

	return s, nil
}

func writeShort(buf *bytes.Buffer, s string) {
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
}

func readShort(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
