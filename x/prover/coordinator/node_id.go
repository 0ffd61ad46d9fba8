package coordinator

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// RandomWorkerID returns a random version 4 UUID as 32 lowercase hex
// characters without dashes. 122 of its 128 bits are random; the version
// and variant bits are fixed.
func RandomWorkerID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
