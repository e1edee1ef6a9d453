// Package canonical converts per-document-type draft answers into the one
// record shape that validation and finalization work on.
//
// Adapters are pure: the same answers and verified facts always produce an
// equal Record, and a Record is returned for any input, however empty. They
// never validate; missing values come back as empty strings.
package canonical

import (
	"deedwizard/pkg/domain"
)

// Record is the canonical conveyance. It is rebuilt from the draft on every
// review and finalize and never persisted in this form.
type Record struct {
	DocumentType   domain.DocumentType `json:"documentType"`
	Property       Property            `json:"property"`
	Parties        Parties             `json:"parties"`
	Vesting        Vesting             `json:"vesting"`
	RequestDetails RequestDetails      `json:"requestDetails"`
	MailTo         *MailingAddress     `json:"mailTo"`
	TransferTax    *TransferTax        `json:"transferTax"`
}

type Property struct {
	Address          string `json:"address"`
	ParcelID         string `json:"parcelId"`
	County           string `json:"county"`
	LegalDescription string `json:"legalDescription"`
}

type Party struct {
	Name string `json:"name"`
}

type Parties struct {
	Grantor Party `json:"grantor"`
	Grantee Party `json:"grantee"`
}

// Vesting describes how the grantee takes title. A nil Description means
// none was given.
type Vesting struct {
	Description *string `json:"description"`
}

// RequestDetails are the optional recording-request fields.
type RequestDetails struct {
	RequestedBy      string `json:"requestedBy"`
	TitleCompany     string `json:"titleCompany"`
	EscrowNumber     string `json:"escrowNumber"`
	TitleOrderNumber string `json:"titleOrderNumber"`
}

// MailingAddress is where the recorded deed is returned.
type MailingAddress struct {
	Name   string `json:"name"`
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// TransferTax is the documentary transfer tax declaration.
type TransferTax struct {
	IsExempt      bool   `json:"isExempt"`
	ExemptReason  string `json:"exemptReason"`
	TransferValue string `json:"transferValue"`
	AreaType      string `json:"areaType"`
	CityName      string `json:"cityName"`
}

// Required field paths, in the order issues are reported.
const (
	PathPropertyAddress  = "property.address"
	PathParcelID         = "property.parcelId"
	PathCounty           = "property.county"
	PathLegalDescription = "property.legalDescription"
	PathGrantorName      = "parties.grantor.name"
	PathGranteeName      = "parties.grantee.name"
)

// RequiredPaths lists the six fields a record cannot be committed without.
func RequiredPaths() []string {
	return []string{
		PathPropertyAddress,
		PathParcelID,
		PathCounty,
		PathLegalDescription,
		PathGrantorName,
		PathGranteeName,
	}
}

// Value returns the string at a required path, or "" for unknown paths.
func (r Record) Value(path string) string {
	switch path {
	case PathPropertyAddress:
		return r.Property.Address
	case PathParcelID:
		return r.Property.ParcelID
	case PathCounty:
		return r.Property.County
	case PathLegalDescription:
		return r.Property.LegalDescription
	case PathGrantorName:
		return r.Parties.Grantor.Name
	case PathGranteeName:
		return r.Parties.Grantee.Name
	default:
		return ""
	}
}
