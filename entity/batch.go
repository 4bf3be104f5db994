package entity

import "time"

// Batch is a named group of key cards issued together. Count is the
// number of cards requested at issuance; cards are never added to a
// batch later. When a bulk insert partially fails Count may exceed the
// number of stored cards, which the issuer reports instead of hiding.
type Batch struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Count     int       `json:"count" bson:"count"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
