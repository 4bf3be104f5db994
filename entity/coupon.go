package entity

// Coupon is the display value object built from one upstream coupon
// record: a "name|limit-amount" text, a presentation color tag and the
// masked owner identifier extracted from the use condition.
type Coupon struct {
	Text  string `json:"text" bson:"text"`
	Color string `json:"color" bson:"color"`
	User  string `json:"user" bson:"user"`
}
