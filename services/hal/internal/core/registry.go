package core

import (
	"fmt"
	"sync"

	"brewcode-go/types"
)

var (
	regMu    sync.RWMutex
	builders = map[string]Builder{}
)

func RegisterBuilder(typ string, b Builder) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := builders[typ]; exists {
		panic(fmt.Sprintf("duplicate device builder: %s", typ))
	}
	builders[typ] = b
}

func lookupBuilder(typ string) (Builder, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := builders[typ]
	return b, ok
}

type HALConfig = types.HALConfig
type HALDevice = types.HALDevice
