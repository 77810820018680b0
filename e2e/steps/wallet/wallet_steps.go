package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	DELETE(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetRequesterURL() string
	Save(key, value string)
	Load(key string) (string, error)
}

// RegisterSteps registers credential, notification and DIDComm steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &walletSteps{tc: tc}

	// Credential store
	ctx.Step(`^I store a credential with attributes "([^"]*)"$`, steps.storeCredential)
	ctx.Step(`^I fetch the stored credential$`, steps.fetchCredential)
	ctx.Step(`^I revoke the stored credential$`, steps.revokeCredential)

	// Verification requests
	ctx.Step(`^requester "([^"]*)" asks for attributes "([^"]*)"$`, steps.requestWithCallback)
	ctx.Step(`^requester "([^"]*)" without a callback asks for attributes "([^"]*)"$`, steps.requestWithoutCallback)
	ctx.Step(`^I check availability for the notification$`, steps.checkAvailability)
	ctx.Step(`^I (accept|decline) the notification$`, steps.decide)
	ctx.Step(`^I accept the notification with the stored credential$`, steps.acceptWithStored)
	ctx.Step(`^I fetch the notification$`, steps.fetchNotification)
	ctx.Step(`^I fetch the verification session$`, steps.fetchSession)

	// DIDComm
	ctx.Step(`^an issuer offers a credential with attributes "([^"]*)"$`, steps.receiveOffer)
	ctx.Step(`^I send a DIDComm message of type "([^"]*)"$`, steps.sendMessageOfType)
}

type walletSteps struct {
	tc TestContext
}

// parseAttributes reads "name=Alice,email=a@x" into an attribute list.
func parseAttributes(list string) ([]map[string]any, error) {
	var attrs []map[string]any
	for _, pair := range strings.Split(list, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q is not name=value", pair)
		}
		attrs = append(attrs, map[string]any{"name": name, "value": value})
	}
	return attrs, nil
}

func splitNames(list string) []string {
	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// saveField stores a string response field under key when the last call succeeded.
func (s *walletSteps) saveField(field, key string) error {
	status := s.tc.GetLastResponseStatus()
	if status < 200 || status > 299 {
		return nil
	}
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %s is not a string: %v", field, v)
	}
	s.tc.Save(key, str)
	return nil
}

func (s *walletSteps) storeCredential(ctx context.Context, list string) error {
	attrs, err := parseAttributes(list)
	if err != nil {
		return err
	}
	if err := s.tc.POST("/credentials", map[string]any{"attributes": attrs}); err != nil {
		return err
	}
	return s.saveField("id", "credential")
}

func (s *walletSteps) fetchCredential(ctx context.Context) error {
	credID, err := s.tc.Load("credential")
	if err != nil {
		return err
	}
	return s.tc.GET("/credentials/"+credID, nil)
}

func (s *walletSteps) revokeCredential(ctx context.Context) error {
	credID, err := s.tc.Load("credential")
	if err != nil {
		return err
	}
	return s.tc.POST("/credentials/"+credID+"/revoke", map[string]any{})
}

func (s *walletSteps) requestWithCallback(ctx context.Context, requester, names string) error {
	return s.request(requester, names, s.tc.GetRequesterURL()+"/callback")
}

func (s *walletSteps) requestWithoutCallback(ctx context.Context, requester, names string) error {
	return s.request(requester, names, "")
}

func (s *walletSteps) request(requester, names, callbackURL string) error {
	req := map[string]any{
		"requester":           map[string]any{"externalId": requester, "callbackUrl": callbackURL},
		"requestedAttributes": splitNames(names),
	}
	if err := s.tc.POST("/verification-requests", req); err != nil {
		return err
	}
	if err := s.saveField("notificationId", "notification"); err != nil {
		return err
	}
	return s.saveField("sessionId", "session")
}

func (s *walletSteps) checkAvailability(ctx context.Context) error {
	notifID, err := s.tc.Load("notification")
	if err != nil {
		return err
	}
	return s.tc.GET("/notifications/"+notifID+"/availability", nil)
}

func (s *walletSteps) decide(ctx context.Context, action string) error {
	return s.sendDecision(map[string]any{"action": action})
}

func (s *walletSteps) acceptWithStored(ctx context.Context) error {
	credID, err := s.tc.Load("credential")
	if err != nil {
		return err
	}
	return s.sendDecision(map[string]any{"action": "accept", "credentialId": credID})
}

func (s *walletSteps) sendDecision(body map[string]any) error {
	notifID, err := s.tc.Load("notification")
	if err != nil {
		return err
	}
	return s.tc.POST("/notifications/"+notifID+"/decision", body)
}

func (s *walletSteps) fetchNotification(ctx context.Context) error {
	notifID, err := s.tc.Load("notification")
	if err != nil {
		return err
	}
	return s.tc.GET("/notifications/"+notifID, nil)
}

func (s *walletSteps) fetchSession(ctx context.Context) error {
	sessionID, err := s.tc.Load("session")
	if err != nil {
		return err
	}
	return s.tc.GET("/verification-sessions/"+sessionID, nil)
}

func (s *walletSteps) receiveOffer(ctx context.Context, list string) error {
	attrs, err := parseAttributes(list)
	if err != nil {
		return err
	}
	msg := map[string]any{
		"@type":              "https://didcomm.org/issue-credential/1.0/offer-credential",
		"credential_preview": map[string]any{"attributes": attrs},
	}
	if err := s.tc.POST("/didcomm", msg); err != nil {
		return err
	}
	return s.saveField("id", "notification")
}

func (s *walletSteps) sendMessageOfType(ctx context.Context, msgType string) error {
	return s.tc.POST("/didcomm", map[string]any{"@type": msgType})
}
