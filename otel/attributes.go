package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrTopic      = attribute.Key("messaging.destination.name")
	AttrDirection  = attribute.Key("scan.direction")
	AttrSeekType   = attribute.Key("scan.seek_type")
	AttrPollStatus = attribute.Key("scan.poll.status")
	AttrScanStatus = attribute.Key("scan.status")
)

// Status values
const (
	StatusSuccess   = "success"
	StatusEmpty     = "empty"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)
