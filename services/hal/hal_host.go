//go:build !esp32

package hal

import "brewcode-go/services/hal/internal/provider"

// In-memory pins for host runs and tests.
type (
	HostRegistry = provider.HostRegistry
	FakePin      = provider.FakePin
	FakeADC      = provider.FakeADC
)

func NewHostRegistry() *HostRegistry { return provider.NewHostRegistry() }
