package campaign

import (
	"encoding/json"
	"regexp"

	"keycards/entity"
)

var (
	maskedOwnerRe = regexp.MustCompile(`\d{3}\*\*\*\*\d{4}`)
	digitsRe      = regexp.MustCompile(`\d+`)
)

// grabResponse is the upstream envelope: code 0 means success, coupons
// live under data.allCoupons. Records are kept raw so one malformed
// entry never poisons the rest.
type grabResponse struct {
	Code int `json:"code"`
	Data struct {
		AllCoupons []json.RawMessage `json:"allCoupons"`
	} `json:"data"`
}

type couponRecord struct {
	JumppageType int         `json:"jumppageType"`
	CouponName   string      `json:"couponName"`
	AmountLimit  string      `json:"amountLimit"`
	CouponAmount json.Number `json:"couponAmount"`
	UseCondition string      `json:"useCondition"`
}

// parseCoupons keeps records of the configured jumppage type and turns
// them into display coupons. A record that fails to decode, has no
// amount limit digits or no masked owner in its use condition is
// dropped silently.
func parseCoupons(raw []json.RawMessage, jumppageType int) []entity.Coupon {
	var coupons []entity.Coupon
	for _, r := range raw {
		var rec couponRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			continue
		}
		if rec.JumppageType != jumppageType {
			continue
		}
		limit := digitsRe.FindString(rec.AmountLimit)
		owner := maskedOwnerRe.FindString(rec.UseCondition)
		if rec.CouponName == "" || limit == "" || owner == "" {
			continue
		}
		coupons = append(coupons, entity.Coupon{
			Text:  rec.CouponName + "|" + limit + "-" + rec.CouponAmount.String(),
			Color: "text-green-600",
			User:  owner,
		})
	}
	return coupons
}
