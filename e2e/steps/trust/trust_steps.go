package trust

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AdminPOST(path string, body any) error
	AdminGET(path string) error
	AdminDELETE(path string) error
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
}

// RegisterSteps registers trust registry administration steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &trustSteps{tc: tc}

	ctx.Step(`^issuer "([^"]*)" is trusted$`, steps.issuerIsTrusted)
	ctx.Step(`^issuer "([^"]*)" is not trusted$`, steps.issuerIsNotTrusted)
	ctx.Step(`^I list trusted issuers$`, steps.listIssuers)
	ctx.Step(`^I list trusted issuers without the admin token$`, steps.listIssuersAnonymously)
}

type trustSteps struct {
	tc TestContext
}

func (s *trustSteps) issuerIsTrusted(ctx context.Context, did string) error {
	if err := s.tc.AdminPOST("/admin/trusted-issuers", map[string]any{"did": did, "name": "e2e " + did}); err != nil {
		return err
	}
	switch status := s.tc.GetLastResponseStatus(); status {
	case 201, 409:
		return nil
	default:
		return fmt.Errorf("trusting %s returned %d", did, status)
	}
}

func (s *trustSteps) issuerIsNotTrusted(ctx context.Context, did string) error {
	if err := s.tc.AdminDELETE("/admin/trusted-issuers/" + url.PathEscape(did)); err != nil {
		return err
	}
	switch status := s.tc.GetLastResponseStatus(); status {
	case 200, 204, 404:
		return nil
	default:
		return fmt.Errorf("removing %s returned %d", did, status)
	}
}

func (s *trustSteps) listIssuers(ctx context.Context) error {
	return s.tc.AdminGET("/admin/trusted-issuers")
}

func (s *trustSteps) listIssuersAnonymously(ctx context.Context) error {
	return s.tc.GET("/admin/trusted-issuers", nil)
}
