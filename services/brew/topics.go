package brew

import "brewcode-go/bus"

func T(tokens ...any) bus.Topic { return bus.T(tokens...) }

func topicConfig() bus.Topic { return T("config", "brew") }

// Inputs (request/reply).
func TopicOrder() bus.Topic   { return T("brew", "order") }
func TopicTrigger() bus.Topic { return T("brew", "trigger") }
func TopicAbort() bus.Topic   { return T("brew", "abort") }

// Outputs. State is retained; status and transition are events.
func TopicState() bus.Topic      { return T("brew", "state") }
func TopicStatus() bus.Topic     { return T("brew", "status") }
func TopicTransition() bus.Topic { return T("brew", "transition") }
