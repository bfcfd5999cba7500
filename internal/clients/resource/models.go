package resource

import (
	"time"

	"renewals/pkg/domain"
)

// Domain is the directory's view of a domain record.
type Domain struct {
	ID                  domain.DomainID
	Name                string
	DRM                 domain.EmployeeID
	ARM                 domain.EmployeeID
	HOD                 domain.EmployeeID
	ED                  domain.EmployeeID
	NetOps              domain.EmployeeID
	Webmaster           domain.EmployeeID
	HODHPC              domain.EmployeeID
	VaptCompliantStatus bool
	Active              bool
	Renewal             bool
	Deleted             bool
}

type Vapt struct {
	ID         domain.VaptID
	DomainID   domain.DomainID
	Report     []byte
	ExpiryDate time.Time
	Status     string
}

type IP struct {
	ID         domain.IPID
	DomainID   domain.DomainID
	Addresses  []string
	ExpiryDate time.Time
}

type VaptUpdate struct {
	VaptID    domain.VaptID
	NewExpiry time.Time
	NewReport []byte
}

type IPUpdate struct {
	IPID         domain.IPID
	NewAddresses []string
	NewExpiry    time.Time
	RenewalProof []byte
}

// wire formats

type domainDTO struct {
	DomainNameID            domain.FlexibleInt  `json:"domainNameId"`
	DomainName              string              `json:"domainName"`
	DRMEmployeeNumber       domain.FlexibleInt  `json:"drmEmployeeNumber"`
	ARMEmployeeNumber       *domain.FlexibleInt `json:"armEmployeeNumber"`
	HODEmployeeNumber       *domain.FlexibleInt `json:"hodEmployeeNumber"`
	EDEmployeeNumber        *domain.FlexibleInt `json:"edEmployeeNumber"`
	NetopsEmployeeNumber    *domain.FlexibleInt `json:"netopsEmployeeNumber"`
	WebmasterEmployeeNumber *domain.FlexibleInt `json:"webmasterEmployeeNumber"`
	HODHPCEmployeeNumber    *domain.FlexibleInt `json:"hodHpcEmployeeNumber"`
	VaptCompliantStatus     bool                `json:"vaptCompliantStatus"`
	Active                  bool                `json:"active"`
	Renewal                 bool                `json:"renewal"`
	Deleted                 bool                `json:"deleted"`
}

func optEmp(v *domain.FlexibleInt) domain.EmployeeID {
	if v == nil {
		return 0
	}
	return domain.EmployeeID(*v)
}

func (d domainDTO) toModel() *Domain {
	return &Domain{
		ID:                  domain.DomainID(d.DomainNameID),
		Name:                d.DomainName,
		DRM:                 domain.EmployeeID(d.DRMEmployeeNumber),
		ARM:                 optEmp(d.ARMEmployeeNumber),
		HOD:                 optEmp(d.HODEmployeeNumber),
		ED:                  optEmp(d.EDEmployeeNumber),
		NetOps:              optEmp(d.NetopsEmployeeNumber),
		Webmaster:           optEmp(d.WebmasterEmployeeNumber),
		HODHPC:              optEmp(d.HODHPCEmployeeNumber),
		VaptCompliantStatus: d.VaptCompliantStatus,
		Active:              d.Active,
		Renewal:             d.Renewal,
		Deleted:             d.Deleted,
	}
}

type vaptDTO struct {
	VaptID     domain.FlexibleInt `json:"vapt_id"`
	DomainID   domain.FlexibleInt `json:"dm_id"`
	VaptReport []byte             `json:"vapt_report"`
	ExpiryDate time.Time          `json:"expiry_date"`
	VaptStatus string             `json:"vapt_status"`
}

type ipDTO struct {
	IPID       domain.FlexibleInt `json:"ip_id"`
	DomainID   domain.FlexibleInt `json:"dm_id"`
	IPAddress  []string           `json:"ip_address"`
	ExpiryDate time.Time          `json:"expiry_date"`
}

type operatorUpdateDTO struct {
	DRMEmpNo domain.FlexibleInt `json:"drm_empno"`
}

type vaptUpdateDTO struct {
	VaptID        domain.FlexibleInt `json:"vapt_id"`
	NewExpiryDate time.Time          `json:"new_expiry_date"`
	NewVaptReport []byte             `json:"new_vapt_report"`
}

type ipUpdateDTO struct {
	IPID          domain.FlexibleInt `json:"ip_id"`
	NewIPAddress  []string           `json:"new_ip_address"`
	NewExpiryDate time.Time          `json:"new_expiry_date"`
	RenewalPDF    []byte             `json:"rnwl_pdf"`
}
