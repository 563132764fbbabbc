package domain

// Receipt describes a delivered notification.
type Receipt struct {
	Destination string   `json:"destination"`
	MessageIDs  []string `json:"messageIds"`
	Attempts    int      `json:"attempts"`
}
