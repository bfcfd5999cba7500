// Package resource is the typed client for the Resource Directory, the
// service that owns domain, VAPT and IP records.
package resource

import (
	"context"
	"fmt"
	"net/http"

	"renewals/internal/clients/upstream"
	"renewals/pkg/domain"
)

type Client struct {
	caller *upstream.Caller
}

func New(caller *upstream.Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) GetDomain(ctx context.Context, id domain.DomainID) (*Domain, error) {
	var dto domainDTO
	err := c.caller.Do(ctx, upstream.Request{
		Operation: "get_domain",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/exposedApis/domain/%d", id),
	}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

// UpdateDomainOperator reassigns the domain's DRM.
func (c *Client) UpdateDomainOperator(ctx context.Context, id domain.DomainID, operator domain.EmployeeID) error {
	return c.caller.Do(ctx, upstream.Request{
		Operation: "update_domain_operator",
		Method:    http.MethodPatch,
		Path:      fmt.Sprintf("/exposedApis/domain/%d", id),
		Body:      operatorUpdateDTO{DRMEmpNo: domain.FlexibleInt(operator)},
	}, nil)
}

func (c *Client) GetVapt(ctx context.Context, id domain.VaptID) (*Vapt, error) {
	var dto vaptDTO
	err := c.caller.Do(ctx, upstream.Request{
		Operation: "get_vapt",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/exposedApis/vapt/%d", id),
	}, &dto)
	if err != nil {
		return nil, err
	}
	return &Vapt{
		ID:         domain.VaptID(dto.VaptID),
		DomainID:   domain.DomainID(dto.DomainID),
		Report:     dto.VaptReport,
		ExpiryDate: dto.ExpiryDate,
		Status:     dto.VaptStatus,
	}, nil
}

func (c *Client) UpdateVapt(ctx context.Context, u VaptUpdate) error {
	return c.caller.Do(ctx, upstream.Request{
		Operation: "update_vapt",
		Method:    http.MethodPut,
		Path:      "/exposedApis/vapt",
		Body: vaptUpdateDTO{
			VaptID:        domain.FlexibleInt(u.VaptID),
			NewExpiryDate: u.NewExpiry,
			NewVaptReport: u.NewReport,
		},
	}, nil)
}

func (c *Client) GetIP(ctx context.Context, id domain.IPID) (*IP, error) {
	var dto ipDTO
	err := c.caller.Do(ctx, upstream.Request{
		Operation: "get_ip",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/exposedApis/ip/%d", id),
	}, &dto)
	if err != nil {
		return nil, err
	}
	return &IP{
		ID:         domain.IPID(dto.IPID),
		DomainID:   domain.DomainID(dto.DomainID),
		Addresses:  dto.IPAddress,
		ExpiryDate: dto.ExpiryDate,
	}, nil
}

func (c *Client) UpdateIP(ctx context.Context, u IPUpdate) error {
	addrs := u.NewAddresses
	if addrs == nil {
		addrs = []string{}
	}
	return c.caller.Do(ctx, upstream.Request{
		Operation: "update_ip",
		Method:    http.MethodPut,
		Path:      "/exposedApis/ip",
		Body: ipUpdateDTO{
			IPID:          domain.FlexibleInt(u.IPID),
			NewIPAddress:  addrs,
			NewExpiryDate: u.NewExpiry,
			RenewalPDF:    u.RenewalProof,
		},
	}, nil)
}
