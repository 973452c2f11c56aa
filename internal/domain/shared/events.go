package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Event types emitted by the bulletin engine.
const (
	EventBulletinCreated    EventType = "bulletin.created"
	EventBulletinRecomputed EventType = "bulletin.recomputed"
	EventBulletinSubmitted  EventType = "bulletin.submitted"
	EventBulletinValidated  EventType = "bulletin.validated"
	EventBulletinPublished  EventType = "bulletin.published"
	EventRankingRebuilt     EventType = "ranking.rebuilt"
	EventGenerationFinished EventType = "generation.finished"
)

// Event is the interface implemented by all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// AggregateID returns the ID of the aggregate that emitted the event.
	AggregateID() string

	// OccurredAt returns the time the event occurred.
	OccurredAt() time.Time

	// ActorID returns the user who triggered the event, empty for system runs.
	ActorID() string

	// Payload returns the event data for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	Type        EventType
	Aggregate   string
	Time        time.Time
	ActorUserID string
}

// EventType returns the type of the event.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// AggregateID returns the aggregate ID.
func (e BaseEvent) AggregateID() string {
	return e.Aggregate
}

// OccurredAt returns the event time.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Time
}

// ActorID returns the user who triggered the event.
func (e BaseEvent) ActorID() string {
	return e.ActorUserID
}

// NewBaseEvent creates a base event stamped with the current UTC time.
func NewBaseEvent(eventType EventType, aggregateID string, actor Actor) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Aggregate:   aggregateID,
		Time:        time.Now().UTC(),
		ActorUserID: actor.UserID.String(),
	}
}

// BulletinEvent describes a lifecycle mutation of one bulletin.
type BulletinEvent struct {
	BaseEvent
	StudentID   string
	ClassroomID string
	SchoolYear  string
	Term        int
	Status      string
}

// Payload returns the event data.
func (e BulletinEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"bulletin_id":  e.Aggregate,
		"student_id":   e.StudentID,
		"classroom_id": e.ClassroomID,
		"school_year":  e.SchoolYear,
		"term":         e.Term,
		"status":       e.Status,
		"actor":        e.ActorUserID,
	}
}

// RankingRebuiltEvent describes a full classroom/term ranking pass.
type RankingRebuiltEvent struct {
	BaseEvent
	ClassroomID   string
	SchoolYear    string
	Term          int
	RankedCount   int
	ClassroomSize int
}

// Payload returns the event data.
func (e RankingRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"classroom_id":   e.ClassroomID,
		"school_year":    e.SchoolYear,
		"term":           e.Term,
		"ranked_count":   e.RankedCount,
		"classroom_size": e.ClassroomSize,
	}
}

// GenerationFinishedEvent summarizes one bulk generation run.
type GenerationFinishedEvent struct {
	BaseEvent
	SchoolYear string
	Term       int
	Created    int
	Updated    int
	Skipped    int
	Errors     int
}

// Payload returns the event data.
func (e GenerationFinishedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"school_year": e.SchoolYear,
		"term":        e.Term,
		"created":     e.Created,
		"updated":     e.Updated,
		"skipped":     e.Skipped,
		"errors":      e.Errors,
	}
}

// AuditSink receives domain events for audit logging and notification fan-out.
// It is strictly fire-and-forget: implementations must never let a sink
// failure propagate into the mutation that produced the event.
type AuditSink interface {
	Record(ctx context.Context, event Event)
}

// NopAuditSink discards all events. Useful in tests.
type NopAuditSink struct{}

// Record discards the event.
func (NopAuditSink) Record(ctx context.Context, event Event) {}
