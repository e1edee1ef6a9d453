package validation

import (
	"deedwizard/internal/canonical"
	"deedwizard/internal/flow"
	"deedwizard/pkg/domain"
)

var pathFields = map[string]string{
	canonical.PathPropertyAddress:  flow.FieldPropertyAddress,
	canonical.PathParcelID:         flow.FieldAPN,
	canonical.PathCounty:           flow.FieldCounty,
	canonical.PathLegalDescription: flow.FieldLegalDescription,
	canonical.PathGrantorName:      flow.FieldGrantorName,
	canonical.PathGranteeName:      flow.FieldGranteeName,
	"vesting.description":          flow.FieldVesting,
	"transferTax":                  flow.FieldDTTExempt,
	"transferTax.isExempt":         flow.FieldDTTExempt,
	"transferTax.exemptReason":     flow.FieldDTTExemptReason,
	"transferTax.transferValue":    flow.FieldDTTTransferValue,
	"transferTax.areaType":         flow.FieldDTTAreaType,
	"transferTax.cityName":         flow.FieldDTTCityName,
	"mailTo.name":                  "mailToName",
	"mailTo.street":                "mailToStreet",
	"mailTo.city":                  "mailToCity",
	"mailTo.state":                 "mailToState",
	"mailTo.zip":                   "mailToZip",
	"requestDetails.requestedBy":   "requestedBy",
	"requestDetails.titleCompany":  "titleCompany",
}

// FieldForPath maps an issue path to the draft field that feeds it, or "".
func FieldForPath(path string) string {
	return pathFields[path]
}

// FieldForPathIn is FieldForPath with per-type exceptions: a tax deed's
// grantor comes from the tax collector step.
func FieldForPathIn(t domain.DocumentType, path string) string {
	if t == domain.DocumentTaxDeed && path == canonical.PathGrantorName {
		return flow.FieldTaxCollector
	}
	return FieldForPath(path)
}
