package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"credex/internal/verification/models"
	"credex/internal/verification/service"
	"credex/internal/verification/store"
)

type alwaysTrusted struct{}

func (alwaysTrusted) IsTrusted(context.Context, string) (bool, error) { return true, nil }

type SessionHandlerSuite struct {
	suite.Suite
	manager *service.Manager
	router  chi.Router
}

func TestSessionHandlerSuite(t *testing.T) {
	suite.Run(t, new(SessionHandlerSuite))
}

func (s *SessionHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.manager = service.NewManager(store.NewInMemory(), alwaysTrusted{}, service.WithLogger(logger))
	s.router = chi.NewRouter()
	New(s.manager, logger).Register(s.router)
}

func (s *SessionHandlerSuite) get(target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func (s *SessionHandlerSuite) TestGet() {
	ctx := context.Background()
	created, err := s.manager.Create(ctx, models.Requester{ExternalID: "game"}, []string{"name"}, "corr-7")
	s.Require().NoError(err)

	s.Run("pending before the holder acts", func() {
		w := s.get("/verification-sessions/corr-7")
		s.Require().Equal(http.StatusOK, w.Code)
		var got models.Session
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
		s.Equal(created.ID, got.ID)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("terminal after completion", func() {
		_, err := s.manager.Complete(ctx, string(created.ID), models.Declined("holder declined"))
		s.Require().NoError(err)
		w := s.get("/verification-sessions/" + string(created.ID))
		s.Require().Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `"status":"declined"`)
		s.Contains(w.Body.String(), `"completedAt"`)
	})

	s.Run("unknown id", func() {
		w := s.get("/verification-sessions/nope")
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *SessionHandlerSuite) TestList() {
	ctx := context.Background()
	first, err := s.manager.Create(ctx, models.Requester{ExternalID: "game"}, []string{"name"}, "")
	s.Require().NoError(err)
	_, err = s.manager.Create(ctx, models.Requester{ExternalID: "game"}, []string{"email"}, "")
	s.Require().NoError(err)
	_, err = s.manager.Complete(ctx, string(first.ID), models.FailedWith("no matching credential"))
	s.Require().NoError(err)

	w := s.get("/verification-sessions")
	s.Require().Equal(http.StatusOK, w.Code)
	var all ListResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &all))
	s.Equal(2, all.Total)

	w = s.get("/verification-sessions?status=pending")
	var pending ListResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &pending))
	s.Equal(1, pending.Total)
	s.Equal(models.StatusPending, pending.Sessions[0].Status)
}
