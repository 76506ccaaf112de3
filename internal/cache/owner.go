package cache

import (
	"os"

	"github.com/google/uuid"
)

// newOwnerToken identifies this process as a lock holder.
func newOwnerToken() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + ":" + uuid.NewString()
}
