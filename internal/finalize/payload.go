package finalize

import (
	"net/http"

	"deedwizard/internal/canonical"
	"deedwizard/pkg/domain"
)

// Trace headers sent on every outbound call so the persistence service can
// tell which wizard and build produced a deed.
const (
	HeaderClientFlow  = "x-client-flow"
	HeaderUIComponent = "x-ui-component"
	HeaderBuildSHA    = "x-build-sha"
	HeaderRequestID   = "x-request-id"
)

// Meta is the provenance attached to a commit or generation request.
type Meta struct {
	Source      string
	ClientFlow  string
	UIComponent string
	BuildSHA    string
	RequestID   string
}

// Header renders m as outbound request headers. Empty values are skipped.
func (m Meta) Header() http.Header {
	h := http.Header{}
	set := func(key, value string) {
		if value != "" {
			h.Set(key, value)
		}
	}
	set(HeaderClientFlow, m.ClientFlow)
	set(HeaderUIComponent, m.UIComponent)
	set(HeaderBuildSHA, m.BuildSHA)
	set(HeaderRequestID, m.RequestID)
	return h
}

// Payload is the persistence API's view of a deed.
type Payload struct {
	DocumentType     domain.DocumentType `json:"document_type"`
	PropertyAddress  string              `json:"property_address"`
	APN              string              `json:"apn"`
	County           string              `json:"county"`
	LegalDescription string              `json:"legal_description"`
	GrantorName      string              `json:"grantor_name"`
	GranteeName      string              `json:"grantee_name"`
	Vesting          *string             `json:"vesting"`
	RequestedBy      string              `json:"requested_by,omitempty"`
	TitleCompany     string              `json:"title_company,omitempty"`
	EscrowNumber     string              `json:"escrow_number,omitempty"`
	TitleOrderNumber string              `json:"title_order_number,omitempty"`
	MailTo           *MailToPayload      `json:"mail_to,omitempty"`
	TransferTax      *TransferTaxPayload `json:"transfer_tax,omitempty"`
	Source           string              `json:"source"`
}

type MailToPayload struct {
	Name   string `json:"name"`
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

type TransferTaxPayload struct {
	IsExempt      bool   `json:"is_exempt"`
	ExemptReason  string `json:"exempt_reason,omitempty"`
	TransferValue string `json:"transfer_value,omitempty"`
	AreaType      string `json:"area_type,omitempty"`
	CityName      string `json:"city_name,omitempty"`
}

// DefaultSource tags payloads whose Meta carries no source.
const DefaultSource = "deed-wizard"

// BuildPayload maps a canonical record onto the persistence API shape.
func BuildPayload(rec canonical.Record, meta Meta) Payload {
	p := Payload{
		DocumentType:     rec.DocumentType,
		PropertyAddress:  rec.Property.Address,
		APN:              rec.Property.ParcelID,
		County:           rec.Property.County,
		LegalDescription: rec.Property.LegalDescription,
		GrantorName:      rec.Parties.Grantor.Name,
		GranteeName:      rec.Parties.Grantee.Name,
		Vesting:          rec.Vesting.Description,
		RequestedBy:      rec.RequestDetails.RequestedBy,
		TitleCompany:     rec.RequestDetails.TitleCompany,
		EscrowNumber:     rec.RequestDetails.EscrowNumber,
		TitleOrderNumber: rec.RequestDetails.TitleOrderNumber,
		Source:           meta.Source,
	}
	if p.Source == "" {
		p.Source = DefaultSource
	}
	if m := rec.MailTo; m != nil {
		p.MailTo = &MailToPayload{Name: m.Name, Street: m.Street, City: m.City, State: m.State, Zip: m.Zip}
	}
	if t := rec.TransferTax; t != nil {
		p.TransferTax = &TransferTaxPayload{
			IsExempt:      t.IsExempt,
			ExemptReason:  t.ExemptReason,
			TransferValue: t.TransferValue,
			AreaType:      t.AreaType,
			CityName:      t.CityName,
		}
	}
	return p
}
