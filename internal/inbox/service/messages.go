package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"credex/internal/audit"
	credmodels "credex/internal/credential/models"
	"credex/internal/credential/normalizer"
	"credex/internal/inbox/models"
	vmodels "credex/internal/verification/models"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
)

const connectionResponseType = "https://didcomm.org/connections/1.0/response"

// HandleMessage classifies an inbound message and records what the holder
// sees. Offers and proof requests wait for a decision; the other kinds are
// recorded already decided.
func (r *Router) HandleMessage(ctx context.Context, msg models.Message) (*models.Notification, error) {
	kind := msg.Kind()
	if r.metrics != nil {
		r.metrics.MessagesTotal.WithLabelValues(string(kind)).Inc()
	}
	r.logger.InfoContext(ctx, "protocol message received", "kind", kind, "type", msg.Type, "message_id", msg.ID)

	switch kind {
	case models.KindConnectionRequest:
		return r.handleConnection(ctx, msg)
	case models.KindCredentialOffer:
		return r.handleOffer(ctx, msg)
	case models.KindCredentialIssue:
		return r.handleIssue(ctx, msg)
	case models.KindProofRequest:
		return r.handleProofRequest(ctx, msg)
	case models.KindPresentation:
		return r.handlePresentation(ctx, msg)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported message type: %q", msg.Type))
	}
}

func (r *Router) handleConnection(ctx context.Context, msg models.Message) (*models.Notification, error) {
	label, _ := msg.Body["label"].(string)
	if label == "" {
		label = "unknown agent"
	}
	reply := map[string]any{
		"@type":   connectionResponseType,
		"@id":     "response-" + uuid.NewString(),
		"~thread": map[string]any{"thid": msg.ID},
		"connection": map[string]any{
			"DID": r.walletDID,
			"DIDDoc": map[string]any{
				"@context": "https://w3id.org/did/v1",
				"id":       r.walletDID,
				"service": []any{map[string]any{
					"id":              r.walletDID + "#did-communication",
					"type":            "did-communication",
					"serviceEndpoint": r.walletEndpoint,
				}},
			},
		},
	}
	n := r.decidedNotification(models.TypeConnection, "Connection Request", "Connection established with "+label, msg.Body)
	n.Reply = reply
	return r.create(ctx, n)
}

// handleOffer never rejects a malformed offer: the holder still gets a
// notification, with whatever attributes could be read.
func (r *Router) handleOffer(ctx context.Context, msg models.Message) (*models.Notification, error) {
	offer := normalizer.Normalize(offerPayload(msg.Body), r.now().UTC())
	offer.Status = credmodels.StatusOfferReceived

	n := &models.Notification{
		ID:        id.NewNotificationID(),
		Type:      models.TypeCredentialOffer,
		Title:     "New Credential Offer",
		Message:   "You have received a new credential offer",
		Status:    models.StatusPending,
		Offer:     offer,
		Raw:       msg.Body,
		CreatedAt: r.now().UTC(),
	}
	if len(offer.Attributes) == 0 {
		r.logger.WarnContext(ctx, "credential offer carried no readable attributes", "message_id", msg.ID)
	}
	return r.create(ctx, n)
}

// offerPayload prefers a preview on the message itself and falls back to the
// first offers~attach data block.
func offerPayload(body map[string]any) map[string]any {
	for _, key := range []string{"credential_preview", "credentialPreview", "credentialData", "credential", "attributes"} {
		if _, ok := body[key]; ok {
			return body
		}
	}
	if data, ok := firstAttachData(body, "offers~attach", "offers_attach"); ok {
		return data
	}
	return body
}

// handleIssue stores the issued credential directly as done.
func (r *Router) handleIssue(ctx context.Context, msg models.Message) (*models.Notification, error) {
	payload := msg.Body
	if data, ok := firstAttachData(msg.Body, "credentials~attach", "credentials_attach"); ok {
		payload = data
		if encoded, ok := data["base64"].(string); ok {
			if decoded, err := decodeBase64JSON(encoded); err == nil {
				payload = decoded
			} else {
				r.logger.WarnContext(ctx, "could not decode issued credential, using raw attachment", "error", err)
			}
		}
	}

	cred := normalizer.Normalize(payload, r.now().UTC())
	cred.Status = credmodels.StatusDone
	stored, err := r.credentials.Add(ctx, cred)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, audit.Event{Action: audit.EventCredentialIssued, Subject: string(stored.ID)})

	n := r.decidedNotification(models.TypeCredentialIssue, "Credential Received",
		fmt.Sprintf("Credential stored with %d attributes", len(stored.Attributes)), msg.Body)
	n.CredentialID = stored.ID
	return r.create(ctx, n)
}

type presentationRequest struct {
	RequestedAttributes map[string]struct {
		Name  string   `mapstructure:"name"`
		Names []string `mapstructure:"names"`
	} `mapstructure:"requested_attributes"`
}

func (r *Router) handleProofRequest(ctx context.Context, msg models.Message) (*models.Notification, error) {
	requested := requestedNames(msg.Body)
	if data, ok := firstAttachData(msg.Body, "request_presentations~attach", "request_presentations_attach"); ok && len(requested) == 0 {
		requested = requestedNames(data)
	}
	if len(requested) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "proof request names no attributes")
	}

	var requester vmodels.Requester
	if raw, ok := msg.Body["requester"].(map[string]any); ok {
		cfg := &mapstructure.DecoderConfig{TagName: "json", WeaklyTypedInput: true, Result: &requester}
		if dec, err := mapstructure.NewDecoder(cfg); err == nil {
			_ = dec.Decode(raw)
		}
	}
	if requester.ExternalID == "" {
		requester.ExternalID, _ = msg.Body["label"].(string)
	}
	if requester.ExternalID == "" {
		requester.ExternalID = "didcomm:" + msg.ID
	}

	correlation := msg.ThreadID
	if correlation == "" {
		correlation = msg.ID
	}
	return r.openProofRequest(ctx, requester, requested, correlation, msg.Body)
}

// requestedNames reads requested_attributes as the protocol map keyed by
// referent, ordered by referent, or as a plain list of names.
func requestedNames(m map[string]any) []string {
	if list, ok := m["requestedAttributes"].([]any); ok {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var req presentationRequest
	if err := mapstructure.WeakDecode(m, &req); err != nil || len(req.RequestedAttributes) == 0 {
		return nil
	}
	referents := make([]string, 0, len(req.RequestedAttributes))
	for k := range req.RequestedAttributes {
		referents = append(referents, k)
	}
	slices.Sort(referents)

	var out []string
	for _, k := range referents {
		ref := req.RequestedAttributes[k]
		if ref.Name != "" {
			out = append(out, ref.Name)
		}
		out = append(out, ref.Names...)
	}
	return out
}

// handlePresentation marks the proof request on the same thread, if any.
func (r *Router) handlePresentation(ctx context.Context, msg models.Message) (*models.Notification, error) {
	if msg.ThreadID != "" {
		existing, err := r.store.FindByThread(ctx, msg.ThreadID)
		if err == nil {
			var updated *models.Notification
			err := r.locks.WithLock(string(existing.ID), func() error {
				n, err := r.Get(ctx, existing.ID)
				if err != nil {
					return err
				}
				n.ProofRequest.PresentationReceived = true
				if err := r.store.Save(ctx, n); err != nil {
					return r.notFoundOr(err, n.ID)
				}
				updated = n
				return nil
			})
			if err != nil {
				return nil, err
			}
			r.logger.InfoContext(ctx, "presentation recorded on proof request",
				"notification_id", updated.ID,
				"thread_id", msg.ThreadID,
			)
			return updated.Clone(), nil
		}
	}
	r.logger.InfoContext(ctx, "presentation received without a known thread", "thread_id", msg.ThreadID)
	return r.create(ctx, r.decidedNotification(models.TypePresentation, "Presentation Received",
		"A proof presentation was received", msg.Body))
}

func (r *Router) decidedNotification(t models.Type, title, message string, raw map[string]any) *models.Notification {
	now := r.now().UTC()
	return &models.Notification{
		ID:        id.NewNotificationID(),
		Type:      t,
		Title:     title,
		Message:   message,
		Status:    models.StatusAccepted,
		Raw:       raw,
		CreatedAt: now,
		DecidedAt: &now,
	}
}

func (r *Router) create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if err := r.store.Create(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notification")
	}
	return n.Clone(), nil
}

func firstAttachData(body map[string]any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		list, ok := body[key].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		first, ok := list[0].(map[string]any)
		if !ok {
			continue
		}
		if data, ok := first["data"].(map[string]any); ok {
			return data, true
		}
	}
	return nil, false
}

func decodeBase64JSON(encoded string) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if raw, err = base64.RawURLEncoding.DecodeString(encoded); err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode credential json: %w", err)
	}
	return out, nil
}
