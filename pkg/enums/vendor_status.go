package enums

import "fmt"

type VendorStatus string

const (
	VendorStatusActive   VendorStatus = "active"
	VendorStatusInactive VendorStatus = "inactive"
)

func (s VendorStatus) IsValid() bool {
	return s == VendorStatusActive || s == VendorStatusInactive
}

func ParseVendorStatus(value string) (VendorStatus, error) {
	switch VendorStatus(value) {
	case VendorStatusActive, VendorStatusInactive:
		return VendorStatus(value), nil
	}
	return "", fmt.Errorf("invalid vendor status %q", value)
}
