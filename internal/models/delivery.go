package models

// Delivery is one stop on the worker's delivery list.
type Delivery struct {
	ID      string `json:"id"`
	Time    string `json:"time"` // HH:mm
	Client  string `json:"client"`
	Address string `json:"address"`
	Contact string `json:"contact"`
	Detail  string `json:"detail"`
	Status  string `json:"status"`
}

// DeliveryProof is what the worker captures on the signature screen.
type DeliveryProof struct {
	DeliveryID   string `json:"delivery_id"`
	Signature    []byte `json:"signature"`     // PNG, base64 in JSON
	InvoicePhoto []byte `json:"invoice_photo"` // JPEG, base64 in JSON
	Comment      string `json:"comment"`
	Weight       string `json:"weight"`
	Satisfaction string `json:"satisfaction"`
}
