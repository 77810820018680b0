package service

import (
	"context"
	"fmt"
	"strings"

	credmodels "credex/internal/credential/models"
	"credex/internal/verification/models"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/tracer"
)

// Verify checks cred against the requested attribute names. Attribute
// completeness is decided before the issuer is looked up, so a request with
// missing data never reaches the trust registry. The returned outcome is
// always verified or failed.
func (m *Manager) Verify(ctx context.Context, requested []string, cred *credmodels.Credential) models.Outcome {
	ctx, span := m.tracer.Start(ctx, tracer.SpanVerify)
	result := compare(requested, cred)
	proof := buildProof(requested, cred)

	if len(result.Missing) > 0 {
		result.Message = "Verification FAILED! Missing attributes: " + strings.Join(result.Missing, ", ")
		return m.finish(ctx, span, models.Failed(result, proof))
	}

	issuer, ok := cred.Lookup(IssuerDIDAttribute)
	did := strings.TrimSpace(issuer.Value)
	if !ok || did == "" {
		result.Message = "No issuer DID found in credential"
		return m.finish(ctx, span, models.Failed(result, proof))
	}
	span.SetAttributes(tracer.String(tracer.AttrDID, did))

	check := &models.TrustCheck{DID: did}
	result.Trust = check
	trusted, err := m.trust.IsTrusted(ctx, did)
	if err != nil {
		check.Error = err.Error()
		result.Message = trustFailureMessage(err)
		m.logger.WarnContext(ctx, "trust lookup failed during verification", "did", did, "error", err)
		return m.finish(ctx, span, models.Failed(result, proof))
	}
	check.Reachable = true
	check.Trusted = trusted
	if !trusted {
		result.Message = "Sorry, the DID is unauthorized: " + did
		return m.finish(ctx, span, models.Failed(result, proof))
	}

	result.Verified = true
	result.Message = "Verified by trusted issuer: " + did
	return m.finish(ctx, span, models.Verified(result, proof))
}

// trustFailureMessage reports an unavailable registry as unreachable with the
// cause appended once. Any other lookup error is a rejected lookup, not an
// outage.
func trustFailureMessage(err error) string {
	if !dErrors.HasCode(err, dErrors.CodeUnavailable) {
		return "Trust registry lookup failed"
	}
	detail := err.Error()
	for _, prefix := range []string{"trust registry unreachable", "trust registry unavailable"} {
		if len(detail) >= len(prefix) && strings.EqualFold(detail[:len(prefix)], prefix) {
			detail = strings.TrimLeft(detail[len(prefix):], ": ")
			break
		}
	}
	if detail == "" {
		return "Trust registry unreachable"
	}
	return "Trust registry unreachable: " + detail
}

func (m *Manager) finish(ctx context.Context, span tracer.Span, outcome models.Outcome) models.Outcome {
	span.SetAttributes(tracer.Bool(tracer.AttrVerified, outcome.Status == models.StatusVerified))
	span.End(nil)
	m.logger.DebugContext(ctx, "verification evaluated",
		"status", outcome.Status,
		"message", outcome.Result.Message,
	)
	return outcome
}

// BuildProof snapshots the disclosed data of an explicitly selected
// credential. It fails with credential_mismatch when cred lacks any
// requested attribute.
func BuildProof(requested []string, cred *credmodels.Credential) (*models.Proof, error) {
	if cred == nil {
		return nil, dErrors.New(dErrors.CodeCredentialMismatch, "no credential selected")
	}
	if !cred.HasAll(requested) {
		missing := compare(requested, cred).Missing
		return nil, dErrors.New(dErrors.CodeCredentialMismatch,
			fmt.Sprintf("credential %s is missing requested attributes: %s", cred.ID, strings.Join(missing, ", ")))
	}
	return buildProof(requested, cred), nil
}

// compare splits names into matched and missing in request order, and lists
// credential attributes nobody asked for as extra.
func compare(requested []string, cred *credmodels.Credential) *models.Result {
	result := &models.Result{Matched: []string{}, Missing: []string{}, Extra: []string{}}
	asked := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		key := credmodels.NormalizeName(name)
		if key == "" {
			continue
		}
		if _, dup := asked[key]; dup {
			continue
		}
		asked[key] = struct{}{}
		if attr, ok := cred.Lookup(key); ok {
			result.Matched = append(result.Matched, attr.Name)
		} else {
			result.Missing = append(result.Missing, key)
		}
	}
	for _, attr := range cred.Attributes {
		if _, ok := asked[attr.Key()]; !ok {
			result.Extra = append(result.Extra, attr.Name)
		}
	}
	return result
}

// buildProof discloses the requested attributes plus the issuer DID.
func buildProof(requested []string, cred *credmodels.Credential) *models.Proof {
	wanted := make(map[string]struct{}, len(requested)+1)
	for _, name := range requested {
		wanted[credmodels.NormalizeName(name)] = struct{}{}
	}
	wanted[IssuerDIDAttribute] = struct{}{}

	attrs := make([]credmodels.Attribute, 0, len(requested)+1)
	for _, attr := range cred.Attributes {
		if _, ok := wanted[attr.Key()]; ok {
			attrs = append(attrs, attr)
		}
	}
	return &models.Proof{
		CredentialID:           cred.ID,
		Attributes:             attrs,
		SchemaID:               cred.SchemaID,
		CredentialDefinitionID: cred.CredentialDefinitionID,
	}
}
