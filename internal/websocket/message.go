package websocket

// ActionEnrollmentChanged is sent after a course roster changes.
const ActionEnrollmentChanged = "enrollment.changed"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}
