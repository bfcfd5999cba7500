// Package identity reads users and their reporting chain from the user
// management service.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"renewals/internal/clients/upstream"
	"renewals/pkg/domain"
)

type User struct {
	EmpNo       domain.EmployeeID
	Role        domain.Role
	FirstName   string
	LastName    string
	Designation string
	Email       string
	Telephone   string
	Mobile      string
	CentreID    int
	GroupID     int
	Active      bool
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Supervisors is the officials chain above an employee. Any member may be unset.
type Supervisors struct {
	HOD       domain.EmployeeID
	ARM       domain.EmployeeID
	ED        domain.EmployeeID
	NetOps    domain.EmployeeID
	Webmaster domain.EmployeeID
	HODHPC    domain.EmployeeID
}

// Empty reports whether no approver is assigned.
func (s *Supervisors) Empty() bool {
	return s == nil || s.HOD.IsNil()
}

type Client struct {
	caller *upstream.Caller
}

func New(caller *upstream.Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) GetUser(ctx context.Context, role domain.Role, id domain.EmployeeID) (*User, error) {
	prefix, err := namePrefix(role)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	err = c.caller.Do(ctx, upstream.Request{
		Operation: "get_user",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/api/users/details/%s/%d", strings.ToLower(role.String()), id),
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeUser(raw, role, prefix)
}

func (c *Client) GetSupervisors(ctx context.Context, id domain.EmployeeID) (*Supervisors, error) {
	var dto supervisorsDTO
	err := c.caller.Do(ctx, upstream.Request{
		Operation: "get_supervisors",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/api/users/%d/officials", id),
	}, &dto)
	if err != nil {
		return nil, err
	}
	return &Supervisors{
		HOD:       emp(dto.HOD),
		ARM:       emp(dto.ARM),
		ED:        emp(dto.ED),
		NetOps:    emp(dto.NetOps),
		Webmaster: emp(dto.Webmaster),
		HODHPC:    emp(dto.HODHPC),
	}, nil
}

// namePrefix is the per-role field prefix the user service uses for names.
func namePrefix(role domain.Role) (string, error) {
	switch role {
	case domain.RoleDRM:
		return "drm_", nil
	case domain.RoleARM:
		return "arm_", nil
	case domain.RoleHOD:
		return "hod_", nil
	case domain.RoleNetOps:
		return "netops_", nil
	case domain.RoleED:
		return "ed_", nil
	case domain.RoleWebmaster:
		return "webmaster_", nil
	case domain.RoleHODHPC:
		return "hodhpc_", nil
	default:
		return "", fmt.Errorf("unsupported role %q", role)
	}
}

type userDTO struct {
	EmpNo    domain.FlexibleInt `json:"emp_no"`
	Desig    *string            `json:"desig"`
	EmailID  string             `json:"email_id"`
	TeleNo   *string            `json:"tele_no"`
	MobNo    *string            `json:"mob_no"`
	CentreID int                `json:"centre_id"`
	GrpID    int                `json:"grp_id"`
	IsActive bool               `json:"is_active"`
}

type supervisorsDTO struct {
	HOD       *domain.FlexibleInt `json:"hod_empno"`
	ARM       *domain.FlexibleInt `json:"arm_empno"`
	ED        *domain.FlexibleInt `json:"ed_empno"`
	NetOps    *domain.FlexibleInt `json:"netops_empno"`
	Webmaster *domain.FlexibleInt `json:"webmaster_empno"`
	HODHPC    *domain.FlexibleInt `json:"hodhpc_empno"`
}

func emp(v *domain.FlexibleInt) domain.EmployeeID {
	if v == nil {
		return 0
	}
	return domain.EmployeeID(*v)
}

func decodeUser(raw map[string]json.RawMessage, role domain.Role, prefix string) (*User, error) {
	contract := func(err error) error {
		return upstream.NewError(upstream.CategoryContractMismatch, "user-management-service", "get_user", "decode user", err)
	}

	whole, err := json.Marshal(raw)
	if err != nil {
		return nil, contract(err)
	}
	var dto userDTO
	if err := json.Unmarshal(whole, &dto); err != nil {
		return nil, contract(err)
	}
	if dto.EmpNo <= 0 {
		return nil, contract(fmt.Errorf("missing emp_no"))
	}

	name := func(field string) string {
		var v string
		if msg, ok := raw[prefix+field]; ok {
			_ = json.Unmarshal(msg, &v)
		}
		return v
	}

	return &User{
		EmpNo:       domain.EmployeeID(dto.EmpNo),
		Role:        role,
		FirstName:   name("fname"),
		LastName:    name("lname"),
		Designation: deref(dto.Desig),
		Email:       dto.EmailID,
		Telephone:   deref(dto.TeleNo),
		Mobile:      deref(dto.MobNo),
		CentreID:    dto.CentreID,
		GroupID:     dto.GrpID,
		Active:      dto.IsActive,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
