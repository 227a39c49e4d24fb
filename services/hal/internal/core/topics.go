package core

import "brewcode-go/bus"

func T(tokens ...any) bus.Topic { return bus.T(tokens...) }

func topicConfigHAL() bus.Topic { return T("config", "hal") }

// hal/cap/<domain>/<kind>/<name>/...
func CapBase(domain, kind, name string) bus.Topic { return T("hal", "cap", domain, kind, name) }

func capInfo(domain, kind, name string) bus.Topic   { return CapBase(domain, kind, name).Append("info") }
func capStatus(domain, kind, name string) bus.Topic { return CapBase(domain, kind, name).Append("status") }
func capValue(domain, kind, name string) bus.Topic  { return CapBase(domain, kind, name).Append("value") }

// CapCtrl is hal/cap/<domain>/<kind>/<name>/control/<verb>.
func CapCtrl(domain, kind, name, verb string) bus.Topic {
	return CapBase(domain, kind, name).Append("control", verb)
}

// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic {
	return T("hal", "cap", bus.Single, bus.Single, bus.Single, "control", bus.Single)
}
