package pubsub

import (
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// CloudEvent types emitted by the pipeline stages.
const (
	EventTypeBackfillRequested = "com.peakline.pipeline.backfill.requested"
	EventTypeFetchJob          = "com.peakline.pipeline.fetch.job"
	EventTypeRecomputeRecent   = "com.peakline.pipeline.recent.recompute"
)

// EventSource identifies this pipeline in emitted CloudEvents.
const EventSource = "//peakline/pipeline"

// NewCloudEvent creates a standardized CloudEvent v1.0
func NewCloudEvent(source, eventType string, data interface{}) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetSpecVersion("1.0")
	e.SetType(eventType)
	e.SetSource(source)

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, err
	}

	return e, nil
}
