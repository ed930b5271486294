package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/logger"
	"github.com/fsdevblog/groph-balance/internal/service"
	"github.com/fsdevblog/groph-balance/internal/transport/api/mocks"
	"github.com/fsdevblog/groph-balance/internal/transport/api/testutils"
	"github.com/fsdevblog/groph-balance/internal/transport/api/tokens"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type OperationsHandlerTestSuite struct {
	suite.Suite
	router               *gin.Engine
	mockOperationService *mocks.MockOperationServicer
	jwtSecret            []byte
}

func TestOperationsHandlerSuite(t *testing.T) {
	suite.Run(t, new(OperationsHandlerTestSuite))
}

func (s *OperationsHandlerTestSuite) SetupTest() {
	mockCtrl := gomock.NewController(s.T())
	defer mockCtrl.Finish()

	s.mockOperationService = mocks.NewMockOperationServicer(mockCtrl)
	s.jwtSecret = []byte("super secret key")

	s.router = New(RouterArgs{
		Logger:           logger.New(os.Stdout),
		OperationService: s.mockOperationService,
		JWTSecretKey:     s.jwtSecret,
	})
}

func (s *OperationsHandlerTestSuite) authToken(userID int64) string {
	token, err := tokens.GenerateUserJWT(userID, time.Hour, s.jwtSecret)
	s.Require().NoError(err)
	return "Bearer " + token
}

// Постановка в очередь отвечает 202: мутация применится асинхронно.
func (s *OperationsHandlerTestSuite) TestCreate() {
	var currentUserID int64 = 1

	s.mockOperationService.EXPECT().
		Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, args service.ApplyOperationArgs) (*domain.Operation, error) {
			s.Equal(currentUserID, args.UserID)
			s.Equal(domain.TransactionTypeCredit, args.Type)
			s.True(args.Amount.Equal(decimal.NewFromFloat(100.50)))
			s.Equal("deposit", args.Description)
			return &domain.Operation{ID: 77, Status: domain.OperationStatusNew}, nil
		})

	payload := []byte(`{"type":"credit","amount":100.50,"description":"deposit"}`)
	resp := testutils.MakeRequest(testutils.RequestArgs{
		Router: s.router,
		Method: http.MethodPost,
		URL:    RouteGroup + OperationsRoute,
		Body:   bytes.NewReader(payload),
	}, testutils.WithHeader("Authorization", s.authToken(currentUserID)))
	defer resp.Body.Close() //nolint:errcheck

	s.Require().Equal(http.StatusAccepted, resp.StatusCode)

	var body OperationCreateResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal(int64(77), body.ID)
	s.Equal("NEW", body.Status)
}

func (s *OperationsHandlerTestSuite) TestCreate_InvalidPayload() {
	// до сервиса дело дойти не должно.
	s.mockOperationService.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	cases := []struct {
		name       string
		payload    string
		wantStatus int
	}{
		{
			name:       "unknown type",
			payload:    `{"type":"transfer","amount":10,"description":"x"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing description",
			payload:    `{"type":"credit","amount":10}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "broken json",
			payload:    `{"type":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, c := range cases {
		s.Run(c.name, func() {
			resp := testutils.MakeRequest(testutils.RequestArgs{
				Router: s.router,
				Method: http.MethodPost,
				URL:    RouteGroup + OperationsRoute,
				Body:   bytes.NewReader([]byte(c.payload)),
			}, testutils.WithHeader("Authorization", s.authToken(1)))
			defer resp.Body.Close() //nolint:errcheck

			s.Equal(c.wantStatus, resp.StatusCode)
		})
	}
}

func (s *OperationsHandlerTestSuite) TestCancel() {
	var currentUserID int64 = 1

	s.mockOperationService.EXPECT().
		Cancel(gomock.Any(), int64(77), currentUserID).
		Return(nil)

	resp := testutils.MakeRequest(testutils.RequestArgs{
		Router: s.router,
		Method: http.MethodDelete,
		URL:    RouteGroup + OperationsRoute + "/77",
	}, testutils.WithHeader("Authorization", s.authToken(currentUserID)))
	defer resp.Body.Close() //nolint:errcheck

	s.Equal(http.StatusNoContent, resp.StatusCode)
}

// Уже взятая в работу (или чужая) операция не отменяется.
func (s *OperationsHandlerTestSuite) TestCancel_AlreadyClaimed() {
	var currentUserID int64 = 1

	s.mockOperationService.EXPECT().
		Cancel(gomock.Any(), int64(77), currentUserID).
		Return(domain.ErrRecordNotFound)

	resp := testutils.MakeRequest(testutils.RequestArgs{
		Router: s.router,
		Method: http.MethodDelete,
		URL:    RouteGroup + OperationsRoute + "/77",
	}, testutils.WithHeader("Authorization", s.authToken(currentUserID)))
	defer resp.Body.Close() //nolint:errcheck

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *OperationsHandlerTestSuite) TestCancel_BadID() {
	s.mockOperationService.EXPECT().Cancel(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	resp := testutils.MakeRequest(testutils.RequestArgs{
		Router: s.router,
		Method: http.MethodDelete,
		URL:    RouteGroup + OperationsRoute + "/abc",
	}, testutils.WithHeader("Authorization", s.authToken(1)))
	defer resp.Body.Close() //nolint:errcheck

	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}
