package prefs

// Keys shared between the agent components.
const (
	KeyLatitude          = "latitude"
	KeyLongitude         = "longitude"
	KeyAltitude          = "altitude"
	KeyLocationTimestamp = "location_timestamp" // unix milliseconds
	KeyLocationAccuracy  = "location_accuracy"
	KeyLocationSource    = "location_source"
	KeyLocationConsent   = "location_consent"
	KeyUserID            = "user_id"
	KeyUserName          = "user_name"
)
