package replay

import "time"

// Websocket message types consumed by the replay client.
const (
	messageTypeFrame    = "frame"
	messageTypeSnapshot = "snapshot"
)

// Runner configuration constants.
const (
	frameWaitSlack       = 30 * time.Second
	logFilePermission    = 0600
	directoryPermission  = 0750
	PercentageMultiplier = 100
)
