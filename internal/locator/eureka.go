package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"renewals/pkg/platform/sentinel"
)

type eurekaApplication struct {
	Application struct {
		Name     string           `json:"name"`
		Instance []eurekaInstance `json:"instance"`
	} `json:"application"`
}

type eurekaInstance struct {
	InstanceID  string `json:"instanceId"`
	IPAddr      string `json:"ipAddr"`
	Status      string `json:"status"`
	HomePageURL string `json:"homePageUrl"`
	Port        struct {
		Value   json.Number `json:"$"`
		Enabled string      `json:"@enabled"`
	} `json:"port"`
}

// Eureka queries a Eureka registry for the first instance reporting UP.
type Eureka struct {
	baseURL string
	client  *http.Client
}

func NewEureka(baseURL string, client *http.Client) *Eureka {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Eureka{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (e *Eureka) Resolve(ctx context.Context, serviceName string) (string, error) {
	url := fmt.Sprintf("%s/eureka/apps/%s", e.baseURL, strings.ToUpper(serviceName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("eureka request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("eureka lookup %s: %w: %w", serviceName, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("eureka lookup %s: status %d: %w", serviceName, resp.StatusCode, sentinel.ErrUnavailable)
	}

	var app eurekaApplication
	if err := json.NewDecoder(resp.Body).Decode(&app); err != nil {
		return "", fmt.Errorf("eureka decode %s: %w: %w", serviceName, sentinel.ErrUnavailable, err)
	}

	for _, inst := range app.Application.Instance {
		if !strings.EqualFold(inst.Status, "UP") {
			continue
		}
		if port, err := strconv.Atoi(inst.Port.Value.String()); err == nil && inst.IPAddr != "" {
			return fmt.Sprintf("http://%s:%d", inst.IPAddr, port), nil
		}
		if inst.HomePageURL != "" {
			return strings.TrimRight(inst.HomePageURL, "/"), nil
		}
	}
	return "", fmt.Errorf("no UP instance of %s: %w", serviceName, sentinel.ErrUnavailable)
}
