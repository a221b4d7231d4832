package enums

import "slices"

// PriceApprovalStatus tracks the admin sign-off on a proposed unit price.
type PriceApprovalStatus string

const (
	PriceApprovalPending  PriceApprovalStatus = "pending"
	PriceApprovalApproved PriceApprovalStatus = "approved"
	PriceApprovalRejected PriceApprovalStatus = "rejected"
)

var validPriceApprovalStatuses = []PriceApprovalStatus{
	PriceApprovalPending,
	PriceApprovalApproved,
	PriceApprovalRejected,
}

func (p PriceApprovalStatus) String() string {
	return string(p)
}

func (p PriceApprovalStatus) IsValid() bool {
	return slices.Contains(validPriceApprovalStatuses, p)
}

func ParsePriceApprovalStatus(value string) (PriceApprovalStatus, error) {
	return parse(value, validPriceApprovalStatuses, "price approval status")
}
