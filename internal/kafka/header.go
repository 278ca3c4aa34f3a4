package kafka

import "github.com/segmentio/kafka-go"

// Header aliases the kafka-go header so callers need a single import.
type Header = kafka.Header

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)
