package usecase

// Notifier pushes status events toward a device's relay. Deployments
// without a relay connection (serial or MQTT only) pass nil and events
// are skipped.
type Notifier interface {
	SpeakingStart(deviceID, sessionID, text string)
	SpeakingEnd(deviceID, sessionID string)
	CaptureDescribed(deviceID, captureID, description string)
}
