package session

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/MrEthical07/linkauth"
)

// CurrentSchemaVersion is the first byte of every encoded record.
const CurrentSchemaVersion = 1

const (
	flagActive byte = 1 << 0
)

var errTokenHash = errors.New("session: token hash must be 64 hex characters")

// Encode serializes s into the compact binary record layout:
//
//	version | id | user id | token hash (32) | flags | created | last activity | device | ip | location
//
// Integers are big-endian; times are Unix nanoseconds; strings carry a
// uint16 length prefix.
func Encode(s linkauth.Session) ([]byte, error) {
	hash, err := hex.DecodeString(s.TokenHash)
	if err != nil || len(hash) != 32 {
		return nil, errTokenHash
	}

	var buf bytes.Buffer
	buf.Grow(1 + 8 + 8 + 32 + 1 + 8 + 8 + 6 + len(s.DeviceInfo) + len(s.IPAddress) + len(s.Location))

	buf.WriteByte(CurrentSchemaVersion)
	writeInt64(&buf, s.ID)
	writeInt64(&buf, s.UserID)
	buf.Write(hash)

	var flags byte
	if s.IsActive {
		flags |= flagActive
	}
	buf.WriteByte(flags)

	writeInt64(&buf, unixNano(s.CreatedAt))
	writeInt64(&buf, unixNano(s.LastActivityAt))

	for _, str := range []string{s.DeviceInfo, s.IPAddress, s.Location} {
		if err := writeString(&buf, str); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a record written by Encode.
func Decode(data []byte) (linkauth.Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return linkauth.Session{}, err
	}
	if version != CurrentSchemaVersion {
		return linkauth.Session{}, fmt.Errorf("session: unsupported session schema version %d", version)
	}

	var s linkauth.Session
	if err := binary.Read(reader, binary.BigEndian, &s.ID); err != nil {
		return linkauth.Session{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.UserID); err != nil {
		return linkauth.Session{}, err
	}

	var hash [32]byte
	if _, err := io.ReadFull(reader, hash[:]); err != nil {
		return linkauth.Session{}, err
	}
	s.TokenHash = hex.EncodeToString(hash[:])

	flags, err := reader.ReadByte()
	if err != nil {
		return linkauth.Session{}, err
	}
	s.IsActive = flags&flagActive != 0

	var created, active int64
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return linkauth.Session{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &active); err != nil {
		return linkauth.Session{}, err
	}
	s.CreatedAt = fromUnixNano(created)
	s.LastActivityAt = fromUnixNano(active)

	if s.DeviceInfo, err = readString(reader); err != nil {
		return linkauth.Session{}, err
	}
	if s.IPAddress, err = readString(reader); err != nil {
		return linkauth.Session{}, err
	}
	if s.Location, err = readString(reader); err != nil {
		return linkauth.Session{}, err
	}

	if reader.Len() != 0 {
		return linkauth.Session{}, errors.New("session: trailing bytes")
	}
	return s, nil
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errors.New("session: field too long")
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(s)))
	buf.Write(b[:])
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
