package models

// CustomerInfo is the contact snapshot stored on an order.
type CustomerInfo struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone" json:"phone"`
}

// ShippingAddress is denormalized onto the order and never edited afterwards.
type ShippingAddress struct {
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	Country    string `bson:"country" json:"country"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
}
