package tokenstore

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Binary record layouts for the Redis backend. Offsets are fixed so the
// consume and revoke Lua scripts can parse and patch records server-side
// without a round-trip.
//
//	token:   version(1) tier(1) flags(1) issuedAt(8) expiresAt(8) consumedAt(8) subjectLen(2) subject
//	session: version(1) tier(1) flags(1) issuedAt(8) expiresAt(8) subjectLen(2) subject
const (
	recordVersionV1 = 1

	flagRevoked = 1
)

func encodeToken(tok *OneTimeToken) ([]byte, error) {
	if len(tok.Subject) > 65535 {
		return nil, errors.New("token subject too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersionV1)
	buf.WriteByte(tok.Tier)
	buf.WriteByte(tokenFlags(tok))

	binaryWrite64(&buf, tok.IssuedAt)
	binaryWrite64(&buf, tok.ExpiresAt)
	binaryWrite64(&buf, tok.ConsumedAt)

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(tok.Subject)))
	buf.Write(lenBuf[:])
	buf.WriteString(tok.Subject)

	return buf.Bytes(), nil
}

func decodeToken(data []byte) (*OneTimeToken, error) {
	if len(data) < 29 || data[0] != recordVersionV1 {
		return nil, ErrCorruptRecord
	}

	subjectLen := int(binary.BigEndian.Uint16(data[27:29]))
	if len(data) != 29+subjectLen {
		return nil, ErrCorruptRecord
	}

	return &OneTimeToken{
		Tier:       data[1],
		Revoked:    data[2]&flagRevoked != 0,
		IssuedAt:   int64(binary.BigEndian.Uint64(data[3:11])),
		ExpiresAt:  int64(binary.BigEndian.Uint64(data[11:19])),
		ConsumedAt: int64(binary.BigEndian.Uint64(data[19:27])),
		Subject:    string(data[29:]),
	}, nil
}

func encodeSession(sess *Session) ([]byte, error) {
	if len(sess.Subject) > 65535 {
		return nil, errors.New("session subject too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersionV1)
	buf.WriteByte(sess.Tier)
	buf.WriteByte(sessionFlags(sess))

	binaryWrite64(&buf, sess.IssuedAt)
	binaryWrite64(&buf, sess.ExpiresAt)

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(sess.Subject)))
	buf.Write(lenBuf[:])
	buf.WriteString(sess.Subject)

	return buf.Bytes(), nil
}

func decodeSession(data []byte) (*Session, error) {
	if len(data) < 21 || data[0] != recordVersionV1 {
		return nil, ErrCorruptRecord
	}

	subjectLen := int(binary.BigEndian.Uint16(data[19:21]))
	if len(data) != 21+subjectLen {
		return nil, ErrCorruptRecord
	}

	return &Session{
		Tier:      data[1],
		Revoked:   data[2]&flagRevoked != 0,
		IssuedAt:  int64(binary.BigEndian.Uint64(data[3:11])),
		ExpiresAt: int64(binary.BigEndian.Uint64(data[11:19])),
		Subject:   string(data[21:]),
	}, nil
}

func tokenFlags(tok *OneTimeToken) byte {
	var f byte
	if tok.Revoked {
		f |= flagRevoked
	}
	return f
}

func sessionFlags(sess *Session) byte {
	var f byte
	if sess.Revoked {
		f |= flagRevoked
	}
	return f
}

func binaryWrite64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}
