package enums

import "slices"

// DemandStatus tracks an admin's decision on a client demand.
type DemandStatus string

const (
	DemandStatusPending   DemandStatus = "pending"
	DemandStatusConfirmed DemandStatus = "confirmed"
	DemandStatusRejected  DemandStatus = "rejected"
)

var validDemandStatuses = []DemandStatus{
	DemandStatusPending,
	DemandStatusConfirmed,
	DemandStatusRejected,
}

func (s DemandStatus) IsValid() bool {
	return slices.Contains(validDemandStatuses, s)
}

func ParseDemandStatus(value string) (DemandStatus, error) {
	return parse(value, validDemandStatuses, "demand status")
}
