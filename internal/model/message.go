package model

// Message is immutable once created; its creation is the event that
// triggers a notification fan-out.
type Message struct {
	Record
	Group string `json:"group"`
	From  string `json:"from"`
	Text  string `json:"text"`
}

// PushToken maps a user to one opaque device push address. A user may
// own any number of tokens.
type PushToken struct {
	Record
	PushToken string `json:"pushToken"`
	User      string `json:"user"`
}
