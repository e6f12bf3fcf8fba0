package ids

import "github.com/segmentio/ksuid"

// New returns a sortable 27-character photo id.
func New() string {
	return ksuid.New().String()
}
