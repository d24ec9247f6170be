package mpesa

import (
	"strconv"

	"payment-service/internal/domain"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone turns local or international input such as "0712 345 678"
// or "+254712345678" into the gateway's country-prefixed form without a plus.
// Only mobile numbers of countryCode are accepted.
func NormalizePhone(raw, countryCode string) (string, error) {
	cc, err := strconv.Atoi(countryCode)
	if err != nil {
		return "", domain.Validationf("country code %q is not numeric", countryCode)
	}

	num, err := phonenumbers.Parse(raw, phonenumbers.GetRegionCodeForCountryCode(cc))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", domain.Validationf("phone number %q is not valid", raw)
	}
	if int(num.GetCountryCode()) != cc {
		return "", domain.Validationf("phone number %q must be a +%d number", raw, cc)
	}
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
	default:
		return "", domain.Validationf("phone number %q is not a mobile number", raw)
	}
	return countryCode + phonenumbers.GetNationalSignificantNumber(num), nil
}
