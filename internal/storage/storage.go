package storage

import "liquidityCore/internal/model"

// EventSink defines a sink for engine event records.
type EventSink interface {
	PutEventBatch(events []model.EventRecord) error
}
