package resource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"renewals/internal/clients/upstream"
	"renewals/internal/locator"
	"renewals/pkg/domain"
)

type ClientSuite struct {
	suite.Suite
	server *httptest.Server
	client *Client
	bodies map[string]map[string]any
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.bodies = map[string]map[string]any{}
	r := chi.NewRouter()
	r.Get("/exposedApis/domain/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "10" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"domainNameId":10,"domainName":"example.gov.in","drmEmployeeNumber":1001,
			"armEmployeeNumber":null,"hodEmployeeNumber":2001,"netopsEmployeeNumber":"3001",
			"vaptCompliantStatus":true,"active":true,"renewal":false,"deleted":false,"extra":"ignored"}`))
	})
	r.Patch("/exposedApis/domain/{id}", s.capture("patch_domain", http.StatusNoContent))
	r.Get("/exposedApis/vapt/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"vapt_id":7,"dm_id":10,"vapt_report":"cmVwb3J0","expiry_date":"2026-01-02T00:00:00Z","vapt_status":"COMPLIANT"}`))
	})
	r.Put("/exposedApis/vapt", s.capture("put_vapt", http.StatusOK))
	r.Get("/exposedApis/ip/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip_id":5,"dm_id":10,"ip_address":["10.0.0.1","10.0.0.2"],"expiry_date":"2026-03-01T00:00:00Z"}`))
	})
	r.Put("/exposedApis/ip", s.capture("put_ip", http.StatusOK))
	s.server = httptest.NewServer(r)

	caller := upstream.NewCaller("workflow-service", locator.Static{"workflow-service": s.server.URL})
	s.client = New(caller)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) capture(name string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body := map[string]any{}
		_ = json.Unmarshal(raw, &body)
		s.bodies[name] = body
		w.WriteHeader(status)
	}
}

func (s *ClientSuite) TestGetDomain() {
	s.Run("decodes mixed number and string ids", func() {
		d, err := s.client.GetDomain(context.Background(), 10)
		s.Require().NoError(err)
		s.Equal(domain.DomainID(10), d.ID)
		s.Equal("example.gov.in", d.Name)
		s.Equal(domain.EmployeeID(1001), d.DRM)
		s.Equal(domain.EmployeeID(2001), d.HOD)
		s.Equal(domain.EmployeeID(3001), d.NetOps)
		s.True(d.ARM.IsNil())
		s.True(d.VaptCompliantStatus)
	})

	s.Run("missing domain is not_found", func() {
		_, err := s.client.GetDomain(context.Background(), 11)
		s.True(upstream.IsNotFound(err))
	})
}

func (s *ClientSuite) TestUpdateDomainOperator() {
	s.Require().NoError(s.client.UpdateDomainOperator(context.Background(), 10, 1002))
	s.Equal("1002", s.bodies["patch_domain"]["drm_empno"])
}

func (s *ClientSuite) TestVapt() {
	v, err := s.client.GetVapt(context.Background(), 7)
	s.Require().NoError(err)
	s.Equal([]byte("report"), v.Report)
	s.Equal(domain.DomainID(10), v.DomainID)

	expiry := time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.client.UpdateVapt(context.Background(), VaptUpdate{VaptID: 7, NewExpiry: expiry, NewReport: []byte("new")}))
	body := s.bodies["put_vapt"]
	s.Equal("7", body["vapt_id"])
	s.Equal("2027-01-02T00:00:00Z", body["new_expiry_date"])
	s.Equal("bmV3", body["new_vapt_report"])
}

func (s *ClientSuite) TestIP() {
	ip, err := s.client.GetIP(context.Background(), 5)
	s.Require().NoError(err)
	s.Equal([]string{"10.0.0.1", "10.0.0.2"}, ip.Addresses)

	s.Require().NoError(s.client.UpdateIP(context.Background(), IPUpdate{IPID: 5, NewAddresses: []string{"10.0.0.9"}}))
	body := s.bodies["put_ip"]
	s.Equal("5", body["ip_id"])
	s.Equal([]any{"10.0.0.9"}, body["new_ip_address"])
}
