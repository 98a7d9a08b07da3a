// Package phone normalises user supplied phone numbers to E.164.
package phone

import (
	"errors"
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalid = errors.New("invalid phone number")

// Normalize parses raw and returns it in E.164 form. Without a default
// region the number must be written in international form (+...).
func Normalize(raw, region string) (string, error) {
	const op = "phone.Normalize"

	parsed, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrInvalid, err)
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
