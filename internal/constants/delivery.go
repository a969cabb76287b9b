package constants

// Delivery statuses derived from the backend record.
const (
	// DeliveryStatusInProgress indicates that the delivery is still to be made
	DeliveryStatusInProgress = "in_progress"
	// DeliveryStatusCancelled indicates that the delivery was returned or cancelled
	DeliveryStatusCancelled = "cancelled"
	// DeliveryStatusCompleted indicates that the delivery was signed on arrival
	DeliveryStatusCompleted = "completed"
)

// Customer satisfaction values captured on the signature screen.
const (
	SatisfactionHappy   = "happy"
	SatisfactionNeutral = "neutral"
	SatisfactionSad     = "sad"
)

// AccessCodeLength is the number of digits in a worker access code.
const AccessCodeLength = 5
