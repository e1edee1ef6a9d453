package canonical

import (
	"deedwizard/internal/draft"
	"deedwizard/internal/flow"
	"deedwizard/pkg/domain"
	pstrings "deedwizard/pkg/platform/strings"
)

// Interspousal transfers are exempt under this section unless the answers
// say otherwise.
const InterspousalExemptReason = "R&T 11930"

// Adapter maps one document type's answers to a Record.
type Adapter interface {
	DocumentType() domain.DocumentType
	ToCanonical(answers draft.Answers, verified *draft.PropertyFacts) Record
}

// deedAdapter is the grant deed mapping, shared by quitclaim and warranty
// deeds under their own type.
type deedAdapter struct {
	docType domain.DocumentType
}

func (a deedAdapter) DocumentType() domain.DocumentType {
	return a.docType
}

func (a deedAdapter) ToCanonical(answers draft.Answers, verified *draft.PropertyFacts) Record {
	return base(a.docType, answers, verified)
}

type interspousalAdapter struct{}

func (interspousalAdapter) DocumentType() domain.DocumentType {
	return domain.DocumentInterspousalTransfer
}

func (interspousalAdapter) ToCanonical(answers draft.Answers, verified *draft.PropertyFacts) Record {
	rec := base(domain.DocumentInterspousalTransfer, answers, verified)
	if rec.TransferTax == nil {
		rec.TransferTax = &TransferTax{}
	}
	if !answers.Has(flow.FieldDTTExempt) {
		rec.TransferTax.IsExempt = true
	}
	if rec.TransferTax.IsExempt && rec.TransferTax.ExemptReason == "" {
		rec.TransferTax.ExemptReason = InterspousalExemptReason
	}
	return rec
}

// taxDeedAdapter conveys from the tax collector rather than the owners of
// record.
type taxDeedAdapter struct{}

func (taxDeedAdapter) DocumentType() domain.DocumentType {
	return domain.DocumentTaxDeed
}

func (taxDeedAdapter) ToCanonical(answers draft.Answers, verified *draft.PropertyFacts) Record {
	rec := base(domain.DocumentTaxDeed, answers, verified)
	rec.Parties.Grantor.Name = first(
		name(answers, flow.FieldGrantorName),
		name(answers, flow.FieldTaxCollector),
	)
	return rec
}

func base(docType domain.DocumentType, a draft.Answers, v *draft.PropertyFacts) Record {
	rec := Record{
		DocumentType: docType,
		Property: Property{
			Address:          prefer(a, v, flow.FieldPropertyAddress),
			ParcelID:         prefer(a, v, flow.FieldAPN),
			County:           prefer(a, v, flow.FieldCounty),
			LegalDescription: prefer(a, v, flow.FieldLegalDescription),
		},
		Parties: Parties{
			Grantor: Party{Name: first(name(a, flow.FieldGrantorName), flow.VerifiedValue(flow.FieldGrantorName, v))},
			Grantee: Party{Name: name(a, flow.FieldGranteeName)},
		},
		RequestDetails: RequestDetails{
			RequestedBy:      answer(a, "requestedBy"),
			TitleCompany:     answer(a, "titleCompany"),
			EscrowNumber:     answer(a, "escrowNumber"),
			TitleOrderNumber: answer(a, "titleOrderNumber"),
		},
	}
	if vesting := answer(a, flow.FieldVesting); vesting != "" {
		rec.Vesting.Description = &vesting
	}

	mail := MailingAddress{
		Name:   answer(a, "mailToName"),
		Street: answer(a, "mailToStreet"),
		City:   answer(a, "mailToCity"),
		State:  answer(a, "mailToState"),
		Zip:    answer(a, "mailToZip"),
	}
	if mail != (MailingAddress{}) {
		rec.MailTo = &mail
	}

	if anyAnswered(a, flow.FieldDTTExempt, flow.FieldDTTExemptReason, flow.FieldDTTTransferValue, flow.FieldDTTAreaType, flow.FieldDTTCityName) {
		rec.TransferTax = &TransferTax{
			IsExempt:      a.Bool(flow.FieldDTTExempt),
			ExemptReason:  answer(a, flow.FieldDTTExemptReason),
			TransferValue: answer(a, flow.FieldDTTTransferValue),
			AreaType:      answer(a, flow.FieldDTTAreaType),
			CityName:      answer(a, flow.FieldDTTCityName),
		}
	}
	return rec
}

// prefer is the explicit answer, then the verified fact, then "".
func prefer(a draft.Answers, v *draft.PropertyFacts, field string) string {
	return first(answer(a, field), flow.VerifiedValue(field, v))
}

func answer(a draft.Answers, field string) string {
	return a.String(field)
}

// name is an answer with inner whitespace runs folded, for party names.
func name(a draft.Answers, field string) string {
	return pstrings.CollapseSpace(a.String(field))
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func anyAnswered(a draft.Answers, fields ...string) bool {
	for _, f := range fields {
		if a.Has(f) {
			return true
		}
	}
	return false
}
