package domain

import "fmt"

// Encoding selects how newStatus is represented in change requests.
type Encoding string

const (
	// EncodingBool accepts only JSON true/false.
	EncodingBool Encoding = "bool"
	// EncodingString accepts only the literals "open" and "close".
	EncodingString Encoding = "string"
)

func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingBool, EncodingString:
		return Encoding(s), nil
	case "":
		return EncodingBool, nil
	}
	return "", fmt.Errorf("unknown status encoding %q", s)
}

// InvalidStatusMessage is the error text returned when newStatus does not decode.
func (e Encoding) InvalidStatusMessage() string {
	if e == EncodingString {
		return `Invalid status. Allowed values are "open" or "close".`
	}
	return "Invalid status. Allowed values are true (for open) or false (for close)."
}
