package notification

import (
	"time"

	"renewals/pkg/domain"
)

// EventType values are the human-readable names the notification service keys on.
type EventType string

const (
	EventTransferStarted  EventType = "Domain transfer initiated"
	EventTransferApproved EventType = "Domain transfer approved"
	EventTransferFinished EventType = "Domain transfer completed"

	EventVaptRenewalRequested EventType = "VAPT renewal requested"
	EventVaptRenewalApproved  EventType = "VAPT renewal approved"
	EventVaptRenewalRejected  EventType = "VAPT renewal rejected"
	EventVaptRenewalReviewed  EventType = "VAPT renewal resubmitted"
	EventVaptRenewed          EventType = "VAPT renewed"

	EventIPRenewalRequested EventType = "IP renewal requested"
	EventIPRenewalApproved  EventType = "IP renewal approved"
	EventIPRenewalRejected  EventType = "IP renewal rejected"
	EventIPRenewalReviewed  EventType = "IP renewal resubmitted"
	EventIPRenewalCompleted EventType = "IP renewal completed"
	EventIPRenewed          EventType = "IP renewed"

	EventSystemAlert EventType = "System alert"
)

type TriggeredBy struct {
	EmpNo domain.FlexibleInt `json:"emp_no"`
	Role  string             `json:"role"`
}

type Data struct {
	DomainID   domain.FlexibleInt `json:"domainId"`
	DomainName string             `json:"domainName"`
	Remarks    string             `json:"remarks"`
}

// Recipients lists who should be told; unset members are omitted.
type Recipients struct {
	DRM       *domain.FlexibleInt `json:"drm_emp_no,omitempty"`
	ARM       *domain.FlexibleInt `json:"arm_emp_no,omitempty"`
	HOD       *domain.FlexibleInt `json:"hod_emp_no,omitempty"`
	ED        *domain.FlexibleInt `json:"ed_emp_no,omitempty"`
	NetOps    *domain.FlexibleInt `json:"netops_emp_no,omitempty"`
	Webmaster *domain.FlexibleInt `json:"webmaster_emp_no,omitempty"`
	HODHPC    *domain.FlexibleInt `json:"hodhpc_emp_no,omitempty"`
}

type Event struct {
	EventType   EventType   `json:"eventType"`
	Timestamp   time.Time   `json:"timestamp"`
	TriggeredBy TriggeredBy `json:"triggeredBy"`
	Data        Data        `json:"data"`
	Recipients  Recipients  `json:"recipients"`
}

// Recipient returns a recipient slot for id, or nil when id is unset.
func Recipient(id domain.EmployeeID) *domain.FlexibleInt {
	if id.IsNil() {
		return nil
	}
	v := domain.FlexibleInt(id)
	return &v
}

// NewEvent stamps an event triggered by actor at now.
func NewEvent(eventType EventType, actor domain.Actor, now time.Time, data Data, recipients Recipients) Event {
	if data.Remarks == "" {
		data.Remarks = "NA"
	}
	return Event{
		EventType:   eventType,
		Timestamp:   now.UTC(),
		TriggeredBy: TriggeredBy{EmpNo: domain.FlexibleInt(actor.ID), Role: actor.Role.String()},
		Data:        data,
		Recipients:  recipients,
	}
}
