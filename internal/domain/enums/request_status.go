package enums

import (
	"fmt"
	"strings"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusContacted RequestStatus = "contacted"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCompleted RequestStatus = "completed"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:   {RequestStatusContacted},
	RequestStatusContacted: {RequestStatusApproved, RequestStatusRejected},
	RequestStatusApproved:  {RequestStatusCompleted},
	RequestStatusRejected:  nil,
	RequestStatusCompleted: nil,
}

func (s RequestStatus) Valid() bool {
	_, ok := requestTransitions[s]
	return ok
}

func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseRequestStatus(raw string) (RequestStatus, error) {
	status := RequestStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown request status %q", raw)
	}
	return status, nil
}
