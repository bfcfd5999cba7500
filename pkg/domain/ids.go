package domain

import (
	"strconv"
	"strings"

	dErrors "renewals/pkg/domain-errors"
)

// Identifiers issued by the resource directory and the identity service are
// positive 64-bit integers. They travel as decimal strings on the wire.
type (
	EmployeeID    int64
	DomainID      int64
	VaptID        int64
	IPID          int64
	TransferID    int64
	VaptRenewalID int64
	IPRenewalID   int64
)

// maxIDLength bounds input before parsing; int64 max has 19 digits.
const maxIDLength = 19

func parsePositive(s, label string) (int64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > maxIDLength {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return v, nil
}

func ParseEmployeeID(s string) (EmployeeID, error) {
	v, err := parsePositive(s, "employee id")
	return EmployeeID(v), err
}

func ParseDomainID(s string) (DomainID, error) {
	v, err := parsePositive(s, "domain id")
	return DomainID(v), err
}

func ParseVaptID(s string) (VaptID, error) {
	v, err := parsePositive(s, "vapt id")
	return VaptID(v), err
}

func ParseIPID(s string) (IPID, error) {
	v, err := parsePositive(s, "ip id")
	return IPID(v), err
}

func ParseTransferID(s string) (TransferID, error) {
	v, err := parsePositive(s, "transfer id")
	return TransferID(v), err
}

func ParseVaptRenewalID(s string) (VaptRenewalID, error) {
	v, err := parsePositive(s, "vapt renewal id")
	return VaptRenewalID(v), err
}

func ParseIPRenewalID(s string) (IPRenewalID, error) {
	v, err := parsePositive(s, "ip renewal id")
	return IPRenewalID(v), err
}

func (id EmployeeID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id DomainID) String() string      { return strconv.FormatInt(int64(id), 10) }
func (id VaptID) String() string        { return strconv.FormatInt(int64(id), 10) }
func (id IPID) String() string          { return strconv.FormatInt(int64(id), 10) }
func (id TransferID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id VaptRenewalID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id IPRenewalID) String() string   { return strconv.FormatInt(int64(id), 10) }

func (id EmployeeID) IsNil() bool { return id <= 0 }
func (id DomainID) IsNil() bool   { return id <= 0 }
func (id VaptID) IsNil() bool     { return id <= 0 }
func (id IPID) IsNil() bool       { return id <= 0 }

// FlexibleInt decodes a JSON number or a decimal string. Upstream services are
// inconsistent about bigint encoding.
type FlexibleInt int64

func (f *FlexibleInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid integer")
	}
	*f = FlexibleInt(v)
	return nil
}

func (f FlexibleInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatInt(int64(f), 10) + `"`), nil
}
