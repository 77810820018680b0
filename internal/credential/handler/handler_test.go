package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"credex/internal/credential/handler/mocks"
	"credex/internal/credential/models"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type CredentialHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestCredentialHandlerSuite(t *testing.T) {
	suite.Run(t, new(CredentialHandlerSuite))
}

func (s *CredentialHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *CredentialHandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *CredentialHandlerSuite) assertError(w *httptest.ResponseRecorder, status int, code string) {
	s.Equal(status, w.Code)
	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(code, body["error"])
}

// =============================================================================
// Create
// =============================================================================

func (s *CredentialHandlerSuite) TestCreate_NormalizesPayload() {
	s.service.EXPECT().Add(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, c *models.Credential) (*models.Credential, error) {
			s.Equal(id.CredentialID("cred_custom"), c.ID)
			s.Equal(models.FormatSimpleKV, c.OriginalFormat)
			s.Equal(models.StatusDone, c.Status)
			s.Equal([]models.Attribute{{Name: "age", Value: "36"}, {Name: "name", Value: "Ada"}}, c.Attributes)
			return c, nil
		})

	w := s.do(http.MethodPost, "/credentials",
		`{"id":" cred_custom ","status":"done","credential":{"name":"Ada","age":36}}`)

	s.Equal(http.StatusCreated, w.Code)
	var got models.Credential
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	s.Equal(got.Attributes, got.Preview.Attributes)
}

func (s *CredentialHandlerSuite) TestCreate_ErrorMapping() {
	s.Run("malformed json returns 400", func() {
		w := s.do(http.MethodPost, "/credentials", `{"credential":`)
		s.assertError(w, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown status returns 400", func() {
		w := s.do(http.MethodPost, "/credentials", `{"status":"archived","attributes":[]}`)
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("duplicate id returns 409", func() {
		s.service.EXPECT().Add(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "credential id already exists: cred_1"))
		w := s.do(http.MethodPost, "/credentials", `{"id":"cred_1","attributes":[{"name":"a","value":"b"}]}`)
		s.assertError(w, http.StatusConflict, "conflict")
	})

	s.Run("persistence failure returns 500", func() {
		s.service.EXPECT().Add(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "failed to persist credentials"))
		w := s.do(http.MethodPost, "/credentials", `{"attributes":[{"name":"a","value":"b"}]}`)
		s.assertError(w, http.StatusInternalServerError, "internal_error")
	})
}

func (s *CredentialHandlerSuite) TestCreate_RejectsPayloadWithoutAttributes() {
	// No Add expectation: gomock fails the test if anything reaches the store.
	for name, body := range map[string]string{
		"empty object":          `{}`,
		"identifiers only":      `{"schemaId":"s1"}`,
		"attributes not a list": `{"attributes":"nope"}`,
		"empty attribute list":  `{"attributes":[]}`,
		"only blank names":      `{"attributes":[{"name":"  ","value":"x"}]}`,
	} {
		s.Run(name, func() {
			w := s.do(http.MethodPost, "/credentials", body)
			s.assertError(w, http.StatusBadRequest, "validation_error")
		})
	}
}

// =============================================================================
// Read / Delete / Revoke
// =============================================================================

func (s *CredentialHandlerSuite) TestList_ParsesFilter() {
	s.service.EXPECT().List(gomock.Any(), models.Filter{Status: models.StatusStored, ExcludeRevoked: true}).
		Return([]*models.Credential{{ID: "cred_1"}}, nil)

	w := s.do(http.MethodGet, "/credentials?status=stored&excludeRevoked=true", "")

	s.Equal(http.StatusOK, w.Code)
	var got ListResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	s.Equal(1, got.Total)

	s.Run("bad boolean returns 400", func() {
		w := s.do(http.MethodGet, "/credentials?excludeDeclined=maybe", "")
		s.assertError(w, http.StatusBadRequest, "bad_request")
	})
	s.Run("bad status returns 400", func() {
		w := s.do(http.MethodGet, "/credentials?status=archived", "")
		s.assertError(w, http.StatusBadRequest, "bad_request")
	})
}

func (s *CredentialHandlerSuite) TestGet_NotFound() {
	s.service.EXPECT().FindByID(gomock.Any(), id.CredentialID("cred_missing")).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "credential not found: cred_missing"))

	w := s.do(http.MethodGet, "/credentials/cred_missing", "")
	s.assertError(w, http.StatusNotFound, "not_found")
}

func (s *CredentialHandlerSuite) TestDelete_ReportsRemoval() {
	s.service.EXPECT().Remove(gomock.Any(), id.CredentialID("cred_gone")).Return(false, nil)

	w := s.do(http.MethodDelete, "/credentials/cred_gone", "")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"id":"cred_gone","removed":false}`, w.Body.String())
}

func (s *CredentialHandlerSuite) TestRevoke() {
	s.service.EXPECT().MarkRevoked(gomock.Any(), id.CredentialID("cred_1")).
		Return(&models.Credential{ID: "cred_1", IsRevoked: true}, nil)

	w := s.do(http.MethodPost, "/credentials/cred_1/revoke", "")

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"isRevoked":true`)
}
