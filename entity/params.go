package entity

import (
	"net/http"

	"keycards/lib/validate"
)

// CreateBatchParams is the request body for issuing a new batch.
type CreateBatchParams struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"required,min=1"`
}

func (p *CreateBatchParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

// ActivateParams is the request body for activating a key card.
// The code itself travels in the X-Key-Card header, the upstream
// credential in the body.
type ActivateParams struct {
	Credential string `json:"credential" validate:"required"`
	OwnerRef   string `json:"owner_ref" validate:"omitempty"`
}

func (p *ActivateParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}
