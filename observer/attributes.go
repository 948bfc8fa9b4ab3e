package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared across observer instrumentation.
var (
	AttrActionName = attribute.Key("loadtest.action.name")
	AttrStatus     = attribute.Key("loadtest.action.status")
)
