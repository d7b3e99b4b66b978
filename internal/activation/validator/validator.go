// Package validator checks step payloads before any write is accepted. It is
// pure: no I/O, no clock, and every violated field is reported at once so the
// client can render a complete correction list.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lendgate/internal/activation"
	domainerrors "lendgate/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

var identificationTypes = map[string]bool{
	"national_id":    true,
	"passport":       true,
	"driver_license": true,
	"voter_card":     true,
}

// DecodeStep parses a raw JSON body into the tagged payload for the given
// step. A step outside 1..6 is a structural bad request, not a field
// validation failure.
func DecodeStep(step int, raw []byte) (activation.StepPayload, error) {
	if step < activation.MinStep || step > activation.MaxStep {
		return nil, domainerrors.New(domainerrors.CodeBadRequest,
			fmt.Sprintf("step must be between %d and %d", activation.MinStep, activation.MaxStep))
	}

	var payload activation.StepPayload
	var err error
	switch step {
	case 1:
		var v activation.Step1Identity
		err = json.Unmarshal(raw, &v)
		payload = v
	case 2:
		var v activation.Step2References
		err = json.Unmarshal(raw, &v)
		payload = v
	case 3:
		var v activation.Step3Residence
		err = json.Unmarshal(raw, &v)
		payload = v
	case 4:
		var v activation.Step4Identification
		err = json.Unmarshal(raw, &v)
		payload = v
	case 5:
		var v activation.Step5Banking
		err = json.Unmarshal(raw, &v)
		payload = v
	case 6:
		var v activation.Step6Signature
		err = json.Unmarshal(raw, &v)
		payload = v
	}
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeBadRequest, "malformed step payload", err)
	}
	return payload, nil
}

// Validate checks the payload against its step's required-field set. Returns
// nil when valid, a *domainerrors.ValidationError otherwise. Validation of
// one step never inspects another step's fields.
func Validate(payload activation.StepPayload) error {
	ve := &domainerrors.ValidationError{}
	switch v := payload.(type) {
	case activation.Step1Identity:
		validateIdentity(ve, v)
	case activation.Step2References:
		validateReferences(ve, v)
	case activation.Step3Residence:
		validateResidence(ve, v)
	case activation.Step4Identification:
		validateIdentification(ve, v)
	case activation.Step5Banking:
		validateBanking(ve, v)
	case activation.Step6Signature:
		validateSignature(ve, v)
	default:
		return domainerrors.New(domainerrors.CodeBadRequest, "unsupported step payload")
	}
	return ve.ErrOrNil()
}

func validateIdentity(ve *domainerrors.ValidationError, v activation.Step1Identity) {
	requireField(ve, "fullName", v.FullName)
	requireField(ve, "gender", v.Gender)
	requireField(ve, "maritalStatus", v.MaritalStatus)
	requireField(ve, "nationality", v.Nationality)
	if strings.TrimSpace(v.DateOfBirth) == "" {
		ve.Add("dateOfBirth", "is required")
	} else if _, err := time.Parse(dateLayout, v.DateOfBirth); err != nil {
		ve.Add("dateOfBirth", "must be a date in YYYY-MM-DD format")
	}
	if !v.TermsAgreed {
		ve.Add("termsAgreed", "terms must be accepted")
	}
}

func validateReferences(ve *domainerrors.ValidationError, v activation.Step2References) {
	if len(v.References) == 0 {
		ve.Add("references", "at least one reference is required")
		return
	}
	for i, ref := range v.References {
		requireField(ve, fmt.Sprintf("references[%d].name", i), ref.Name)
		requireField(ve, fmt.Sprintf("references[%d].relationship", i), ref.Relationship)
		requireField(ve, fmt.Sprintf("references[%d].phone", i), ref.Phone)
	}
}

func validateResidence(ve *domainerrors.ValidationError, v activation.Step3Residence) {
	requireField(ve, "residingCountry", v.Country)
	requireField(ve, "region", v.Region)
	requireField(ve, "city", v.City)
}

func validateIdentification(ve *domainerrors.ValidationError, v activation.Step4Identification) {
	if strings.TrimSpace(v.Type) == "" {
		ve.Add("identificationType", "is required")
	} else if !identificationTypes[v.Type] {
		ve.Add("identificationType", "must be one of national_id, passport, driver_license, voter_card")
	}
	requireField(ve, "identificationNumber", v.Number)
}

func validateBanking(ve *domainerrors.ValidationError, v activation.Step5Banking) {
	requireField(ve, "accountType", v.AccountType)
	requireField(ve, "bankName", v.BankName)
	requireField(ve, "accountHolderName", v.AccountHolderName)
	number := strings.TrimSpace(v.AccountNumber)
	switch {
	case number == "":
		ve.Add("accountNumber", "is required")
	case !digitsOnly(number):
		ve.Add("accountNumber", "must contain digits only")
	case len(number) < 6 || len(number) > 20:
		ve.Add("accountNumber", "must be between 6 and 20 digits")
	}
}

func validateSignature(ve *domainerrors.ValidationError, v activation.Step6Signature) {
	requireField(ve, "signature", v.Signature)
}

func requireField(ve *domainerrors.ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
	}
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
