package store

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v4"
)

// Identities are arbitrary strings, so composite keys escape them
// before splicing next to the ":" delimiter. An escaped identity never
// contains ":", which keeps prefix scans of one identity from matching
// another.
var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

func escapeKeyPart(s string) string {
	return keyEscaper.Replace(s)
}

func tsToBytes(ts time.Time) []byte {
	buf := make([]byte, 8)
	d := ts.UnixNano()
	binary.BigEndian.PutUint64(buf, uint64(d))
	return buf
}

func idToBytes(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func bytesToId(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

func MsgpackMarshalPanic(val interface{}) []byte {
	b, err := msgpack.Marshal(val)
	if err != nil {
		panic(err)
	}
	return b
}

func MsgpackUnmarshal(b []byte, val interface{}) error {
	return msgpack.Unmarshal(b, val)
}
