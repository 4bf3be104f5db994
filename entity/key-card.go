package entity

import "time"

// KeyCardStatus is the lifecycle state of a key card.
// The only legal transition is unused -> used, done exactly once
// by the redemption service through a conditional store update.
type KeyCardStatus string

const (
	StatusUnused KeyCardStatus = "unused"
	StatusUsed   KeyCardStatus = "used"
)

func (s KeyCardStatus) Valid() bool {
	return s == StatusUnused || s == StatusUsed
}

// KeyCard is a single-use redemption code. Credential, OwnerRef,
// Coupons and FirstUseTime are written together in the same atomic
// transition that flips Status to used; a used card's coupon list is
// never modified afterwards.
type KeyCard struct {
	ID           string        `json:"id" bson:"_id"`
	Code         string        `json:"code" bson:"code"`
	Status       KeyCardStatus `json:"status" bson:"status"`
	BatchID      string        `json:"batch_id,omitempty" bson:"batch_id,omitempty"`
	Credential   string        `json:"-" bson:"credential,omitempty"`
	OwnerRef     string        `json:"owner_ref,omitempty" bson:"owner_ref,omitempty"`
	Coupons      []Coupon      `json:"coupons,omitempty" bson:"coupons,omitempty"`
	FirstUseTime *time.Time    `json:"first_use_time,omitempty" bson:"first_use_time,omitempty"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
}

func (k *KeyCard) IsUsed() bool {
	return k.Status == StatusUsed
}
