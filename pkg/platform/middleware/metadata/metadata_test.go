package metadata

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"renewals/pkg/requestcontext"
)

type MetadataSuite struct {
	suite.Suite
}

func TestMetadataSuite(t *testing.T) {
	suite.Run(t, new(MetadataSuite))
}

func (s *MetadataSuite) TestParseUserAgent() {
	s.Run("empty user agent returns unknown client", func() {
		s.Equal("Unknown Client", ParseUserAgent(""))
	})

	s.Run("chrome on desktop includes browser and OS", func() {
		result := ParseUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		s.Contains(result, "Chrome")
		s.Contains(result, " on ")
		s.NotContains(result, "  ")
	})

	s.Run("firefox on linux includes browser", func() {
		result := ParseUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		s.Contains(result, "Firefox")
	})

	s.Run("result has no surrounding whitespace", func() {
		result := ParseUserAgent("curl/8.4.0")
		s.Equal(result, strings.TrimSpace(result))
		s.NotEmpty(result)
	})
}

func (s *MetadataSuite) TestClientIPFromRequest() {
	s.Run("prefers first forwarded address", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
		s.Equal("10.0.0.1", ClientIPFromRequest(r))
	})

	s.Run("falls back to X-Real-IP", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Real-IP", " 10.0.0.9 ")
		s.Equal("10.0.0.9", ClientIPFromRequest(r))
	})

	s.Run("strips port from remote addr", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.168.1.5:4431"
		s.Equal("192.168.1.5", ClientIPFromRequest(r))
	})

	s.Run("strips brackets from ipv6 remote addr", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "[::1]:4431"
		s.Equal("::1", ClientIPFromRequest(r))
	})
}

func (s *MetadataSuite) TestMiddlewareStoresMetadata() {
	var gotIP, gotClient string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotClient = requestcontext.Client(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "127.0.0.1:5000"
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	s.Equal("127.0.0.1", gotIP)
	s.Contains(gotClient, "Firefox")
}
