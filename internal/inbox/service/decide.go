package service

import (
	"context"
	"fmt"
	"slices"

	"credex/internal/audit"
	credmodels "credex/internal/credential/models"
	"credex/internal/inbox/metrics"
	"credex/internal/inbox/models"
	vmodels "credex/internal/verification/models"
	vservice "credex/internal/verification/service"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/middleware/request"
	"credex/pkg/platform/tracer"
)

const (
	noMatchMessage  = "no matching credential"
	declinedMessage = "holder declined the proof request"
)

// pendingCallback is a requester callback owed by a committed decision.
type pendingCallback struct {
	notification *models.Notification
	session      *vmodels.Session
}

// Decide applies a holder decision. Decisions on the same notification are
// serialized; a decision on an already decided notification returns the
// stored result with Replayed set and has no side effects. The requester
// callback runs after the notification lock is released.
func (r *Router) Decide(ctx context.Context, d models.Decision) (result *models.DecisionResult, err error) {
	if d.Action != models.ActionAccept && d.Action != models.ActionDecline {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown action %q", d.Action))
	}
	ctx, span := r.tracer.Start(ctx, tracer.SpanInboxDecide, tracer.String(tracer.AttrAction, string(d.Action)))
	defer func() { span.End(err) }()

	var cb *pendingCallback
	err = r.locks.WithLock(string(d.NotificationID), func() error {
		n, err := r.Get(ctx, d.NotificationID)
		if err != nil {
			return err
		}
		if !n.Type.Actionable() {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("notification %s of type %s takes no decision", n.ID, n.Type))
		}
		if n.Status.IsTerminal() && n.Result != nil {
			replay := *n.Result
			replay.Replayed = true
			result = &replay
			if r.metrics != nil {
				r.metrics.DecisionReplaysTotal.Inc()
			}
			r.logger.InfoContext(ctx, "decision replayed",
				"notification_id", n.ID,
				"stored_action", n.Result.Action,
				"requested_action", d.Action,
			)
			return nil
		}

		var res *models.DecisionResult
		switch n.Type {
		case models.TypeCredentialOffer:
			res, err = r.decideOffer(ctx, n, d)
		case models.TypeProofRequest:
			res, cb, err = r.decideProof(ctx, n, d)
		}
		if err != nil {
			return err
		}

		now := r.now().UTC()
		n.Status = res.Status
		n.DecidedAt = &now
		n.Result = res
		if res.CredentialID != "" {
			n.CredentialID = res.CredentialID
		}
		if err := r.store.Save(ctx, n); err != nil {
			return r.notFoundOr(err, n.ID)
		}
		if r.metrics != nil {
			r.metrics.DecisionsTotal.WithLabelValues(string(n.Type), string(d.Action)).Inc()
		}
		r.logger.InfoContext(ctx, "notification decided",
			"notification_id", n.ID,
			"type", n.Type,
			"action", d.Action,
			"status", n.Status,
		)
		out := *res
		result = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cb != nil {
		r.deliver(ctx, cb.notification, cb.session, result)
		if result.CallbackDelivered {
			r.recordDelivery(ctx, d.NotificationID, result)
		}
	}
	return result, nil
}

// recordDelivery stores the callback outcome on the decided notification.
// The decision is already saved, so a failure here only loses the ack.
func (r *Router) recordDelivery(ctx context.Context, notificationID id.NotificationID, res *models.DecisionResult) {
	err := r.locks.WithLock(string(notificationID), func() error {
		n, err := r.Get(ctx, notificationID)
		if err != nil {
			return err
		}
		if n.Result == nil {
			return nil
		}
		n.Result.CallbackDelivered = res.CallbackDelivered
		n.Result.RequesterAck = res.RequesterAck
		if err := r.store.Save(ctx, n); err != nil {
			return r.notFoundOr(err, n.ID)
		}
		return nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to record callback delivery",
			"notification_id", notificationID,
			"error", err,
		)
	}
}

func (r *Router) decideOffer(ctx context.Context, n *models.Notification, d models.Decision) (*models.DecisionResult, error) {
	if d.Action == models.ActionDecline {
		r.emit(ctx, audit.Event{
			Action:    audit.EventCredentialDeclined,
			Subject:   string(n.ID),
			Decision:  string(d.Action),
			RequestID: request.GetRequestID(ctx),
		})
		return &models.DecisionResult{Action: d.Action, Status: models.StatusDeclined}, nil
	}

	cred := n.Offer.Clone()
	if cred == nil {
		cred = &credmodels.Credential{OriginalFormat: credmodels.FormatUnknown}
		cred.SetAttributes(nil)
	}
	cred.ID = ""
	cred.Status = credmodels.StatusStored
	stored, err := r.credentials.Add(ctx, cred)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, audit.Event{
		Action:    audit.EventCredentialAccepted,
		Subject:   string(n.ID),
		Decision:  string(d.Action),
		Reason:    string(stored.ID),
		RequestID: request.GetRequestID(ctx),
	})
	return &models.DecisionResult{
		Action:       d.Action,
		Status:       models.StatusAccepted,
		CredentialID: stored.ID,
		Message:      fmt.Sprintf("credential %s stored", stored.ID),
	}, nil
}

func (r *Router) decideProof(ctx context.Context, n *models.Notification, d models.Decision) (*models.DecisionResult, *pendingCallback, error) {
	pr := n.ProofRequest
	status := models.StatusAccepted
	if d.Action == models.ActionDecline {
		status = models.StatusDeclined
	}

	session, err := r.sessions.Get(ctx, string(pr.SessionID))
	if err != nil {
		return nil, nil, err
	}
	if session.Status.IsTerminal() {
		// Closed elsewhere, for example by expiry. Report it without a callback.
		return sessionResult(d.Action, status, session, ""), nil, nil
	}

	var (
		outcome vmodels.Outcome
		credID  = d.CredentialID
	)
	if d.Action == models.ActionDecline {
		outcome = vmodels.Declined(declinedMessage)
	} else {
		outcome, credID, err = r.evaluate(ctx, pr, d)
		if err != nil {
			return nil, nil, err
		}
	}

	completed, err := r.sessions.Complete(ctx, string(pr.SessionID), outcome)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeSessionTerminal) {
			return nil, nil, err
		}
		if completed, err = r.sessions.Get(ctx, string(pr.SessionID)); err != nil {
			return nil, nil, err
		}
		return sessionResult(d.Action, status, completed, credID), nil, nil
	}

	res := sessionResult(d.Action, status, completed, credID)
	r.emit(ctx, audit.Event{
		Action:    audit.EventVerificationCompleted,
		Subject:   string(n.ID),
		SessionID: string(completed.ID),
		Requester: pr.Requester.ExternalID,
		Decision:  string(completed.Status),
		Reason:    res.Message,
		RequestID: request.GetRequestID(ctx),
	})
	return res, &pendingCallback{notification: n, session: completed}, nil
}

// evaluate matches and verifies. Registry and mismatch failures become a
// failed outcome; only store errors and unknown explicit credentials abort.
func (r *Router) evaluate(ctx context.Context, pr *models.ProofRequest, d models.Decision) (vmodels.Outcome, id.CredentialID, error) {
	cred, avail, err := r.matcher.Select(ctx, pr.RequestedAttributes, d.CredentialID)
	if err != nil {
		return vmodels.Outcome{}, "", err
	}
	if cred == nil {
		outcome := vmodels.FailedWith(noMatchMessage)
		if avail != nil {
			outcome.Result.Missing = slices.Clone(avail.MissingAttributes)
		}
		return outcome, "", nil
	}
	if !d.CredentialID.IsNil() {
		if _, err := vservice.BuildProof(pr.RequestedAttributes, cred); err != nil {
			r.logger.InfoContext(ctx, "selected credential does not satisfy the request",
				"credential_id", cred.ID,
				"error", err,
			)
			return vmodels.FailedWith(err.Error()), cred.ID, nil
		}
	}
	return r.sessions.Verify(ctx, pr.RequestedAttributes, cred), cred.ID, nil
}

func sessionResult(action models.Action, status models.Status, session *vmodels.Session, credID id.CredentialID) *models.DecisionResult {
	res := &models.DecisionResult{
		Action:        action,
		Status:        status,
		CredentialID:  credID,
		SessionID:     session.ID,
		SessionStatus: session.Status,
		Verified:      session.Status == vmodels.StatusVerified,
	}
	if session.VerificationResult != nil {
		res.Message = session.VerificationResult.Message
	}
	return res
}

// deliver makes one callback attempt. The outcome is recorded on res and
// failures are logged; the session outcome is already committed.
func (r *Router) deliver(ctx context.Context, n *models.Notification, session *vmodels.Session, res *models.DecisionResult) {
	pr := n.ProofRequest
	if r.callbacks == nil || pr.Requester.CallbackURL == "" {
		if r.metrics != nil {
			r.metrics.CallbacksTotal.WithLabelValues(metrics.CallbackSkipped).Inc()
		}
		return
	}

	payload := models.CallbackPayload{
		Action:    models.CallbackDecline,
		SessionID: session.ID,
		Verified:  res.Verified,
		Message:   res.Message,
		Requester: pr.Requester.Label(),
	}
	if res.Action == models.ActionAccept {
		payload.Action = models.CallbackShare
		payload.Proof = session.ProofReceived
	}

	// The holder's request may end before the requester answers.
	cbCtx, span := r.tracer.Start(context.WithoutCancel(ctx), tracer.SpanCallbackDelivery,
		tracer.String(tracer.AttrSessionID, string(session.ID)),
		tracer.String(tracer.AttrAction, payload.Action),
	)
	ack, err := r.callbacks.Notify(cbCtx, pr.Requester.CallbackURL, payload)
	span.End(err)
	if err != nil {
		if r.metrics != nil {
			r.metrics.CallbacksTotal.WithLabelValues(metrics.CallbackFailed).Inc()
		}
		r.logger.WarnContext(ctx, "requester callback failed",
			"session_id", session.ID,
			"requester", pr.Requester.ExternalID,
			"error", err,
		)
		r.emit(ctx, audit.Event{
			Action:    audit.EventCallbackFailed,
			Subject:   string(n.ID),
			SessionID: string(session.ID),
			Requester: pr.Requester.ExternalID,
			Reason:    err.Error(),
			RequestID: request.GetRequestID(ctx),
		})
		return
	}
	if r.metrics != nil {
		r.metrics.CallbacksTotal.WithLabelValues(metrics.CallbackDelivered).Inc()
	}
	res.CallbackDelivered = true
	res.RequesterAck = ack
}
