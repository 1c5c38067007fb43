package util

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/google/uuid"
)

// Md5ThenHex is a quick hasher
func Md5ThenHex(value []byte) string {
	hasher := md5.New()
	hasher.Write(value)
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashUUID derives a stable UUID from the JSON form of value, "" if value
// cannot be marshaled.
func HashUUID(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return md5UUID(raw)
}

// ContentUUID derives a stable UUID from everything read from r.
func ContentUUID(r io.Reader) (string, error) {
	hasher := md5.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	id, err := uuid.FromBytes(hasher.Sum(nil))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func md5UUID(raw []byte) string {
	hash := md5.Sum(raw)
	id, err := uuid.FromBytes(hash[:])
	if err != nil {
		return ""
	}
	return id.String()
}

// NewRunID returns a random identifier for one invocation.
func NewRunID() string {
	return uuid.NewString()
}
