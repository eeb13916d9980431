package messaging

// Kafka topics used by the order workflow.
const (
	TopicOrderRequested = "order.requested"
	TopicOrderPlaced    = "order.placed"

	GroupOrderWorker = "order-worker"
)
