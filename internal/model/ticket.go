package model

type TicketID string

const (
	TicketStatusOK    = "ok"
	TicketStatusError = "error"
)

// DeliveryTicket is the gateway's synchronous acknowledgment of a
// submitted push message. It is not proof of delivery; the delivery
// outcome arrives later as a receipt fetched by ticket id.
type DeliveryTicket struct {
	ID      TicketID `json:"id" db:"ID"`
	Status  string   `json:"status" db:"Status"`
	Message string   `json:"message,omitempty" db:"Message"`
}

func (t DeliveryTicket) OK() bool {
	return t.Status == TicketStatusOK
}
