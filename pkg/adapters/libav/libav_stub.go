//go:build !libav

package libav

import "github.com/user/framegrab/pkg/ports"

// Capability is a placeholder when libav support is not compiled in.
type Capability struct{}

// New returns a capability whose Open always fails.
func New() *Capability {
	return &Capability{}
}

func (c *Capability) Open(path string) (ports.Container, error) {
	return nil, ErrNotCompiled
}

// Available returns false for builds without the libav tag.
func Available() bool {
	return false
}

var _ ports.DecodeCapability = (*Capability)(nil)
