package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateCheckoutIntent OutboxAggregateType = "checkout_intent"
	AggregateCompetition    OutboxAggregateType = "competition"
)

var aggregateTypes = []OutboxAggregateType{AggregateCheckoutIntent, AggregateCompetition}

func (a OutboxAggregateType) IsValid() bool {
	_, err := ParseOutboxAggregateType(string(a))
	return err == nil
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", aggregateTypes, value)
}

// OutboxEventType names what happened to the aggregate.
type OutboxEventType string

const (
	EventCheckoutSubmitted OutboxEventType = "checkout_submitted"
	EventCompetitionClosed OutboxEventType = "competition_closed"
)

var outboxEventTypes = []OutboxEventType{EventCheckoutSubmitted, EventCompetitionClosed}

func (e OutboxEventType) IsValid() bool {
	_, err := ParseOutboxEventType(string(e))
	return err == nil
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", outboxEventTypes, value)
}
