package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventbank/ledger/actors"
	"github.com/eventbank/ledger/bank"
	"github.com/eventbank/ledger/circuitbreaker"
	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/eventstore"
	"github.com/eventbank/ledger/external"
	"github.com/eventbank/ledger/notify"
)

func newTestRouter(t *testing.T) (*gin.Engine, *notify.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.Default()

	store := eventstore.NewInMemoryStore(eventstore.DefaultInMemoryStoreConfig())
	hub := notify.NewHub()
	breakers := circuitbreaker.NewManager(logger)

	saga := actors.NewTransferSaga(
		actors.DefaultTransferSagaConfig(),
		breakers,
		external.NewSimulatedGateway(external.SimulatedGatewayConfig{}),
		external.NewSimulatedGateway(external.SimulatedGatewayConfig{}),
		logger,
	)

	config := actors.DefaultRegistryConfig()
	config.Scheduler.Enabled = false
	registry := actors.NewRegistry(config, store, account.NewDecider(), hub, nil, saga, logger)
	saga.Bind(registry)
	saga.Start()

	t.Cleanup(func() {
		saga.Stop()
		registry.Shutdown()
		hub.Stop()
	})

	service := bank.NewService(registry, store, hub, breakers, nil, logger)
	return NewRouter(service, logger), hub
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createTestAccount(t *testing.T, router *gin.Engine, balance string) string {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/accounts",
		`{"firstName":"Jelly","lastName":"Fish","balance":`+balance+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestRouter_CreateDepositAndRead(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createTestAccount(t, router, "500")

	rec := doRequest(t, router, http.MethodPost, "/accounts/"+id+"/deposit",
		`{"amount":150,"origin":"atm"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/accounts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var state struct {
		Balance  string `json:"balance"`
		Status   string `json:"status"`
		Currency string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "650", state.Balance)
	assert.Equal(t, "Active", state.Status)
	assert.Equal(t, "USD", state.Currency)

	rec = doRequest(t, router, http.MethodGet, "/accounts/"+id+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 2)
}

func TestRouter_ErrorMapping(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createTestAccount(t, router, "100")

	// Недостаток средств
	rec := doRequest(t, router, http.MethodPost, "/accounts/"+id+"/debit",
		`{"amount":500,"origin":"card"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Незарегистрированный получатель
	rec = doRequest(t, router, http.MethodPost, "/accounts/"+id+"/transfer",
		`{"amount":10,"recipient":{"firstName":"A","lastName":"B","identification":"`+uuid.NewString()+`","accountEnvironment":"Internal","identificationStrategy":"AccountID","currency":"USD"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Неизвестный счет
	rec = doRequest(t, router, http.MethodGet, "/accounts/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Некорректный идентификатор
	rec = doRequest(t, router, http.MethodGet, "/accounts/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Повторная блокировка карты - конфликт
	rec = doRequest(t, router, http.MethodPost, "/accounts/"+id+"/lock", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, router, http.MethodPost, "/accounts/"+id+"/lock", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_TransferReturnsTransferID(t *testing.T) {
	router, _ := newTestRouter(t)
	sender := createTestAccount(t, router, "500")
	receiver := createTestAccount(t, router, "0")

	recipient := `{"firstName":"Star","lastName":"Fish","identification":"` + receiver +
		`","accountEnvironment":"Internal","identificationStrategy":"AccountID","currency":"USD"}`

	rec := doRequest(t, router, http.MethodPost, "/accounts/"+sender+"/recipients", recipient)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, "/accounts/"+sender+"/transfer",
		`{"amount":200,"recipient":`+recipient+`}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		TransferID string `json:"transferId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.TransferID)
	assert.NoError(t, err)
}

func TestRouter_DeleteAccount(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createTestAccount(t, router, "100")

	rec := doRequest(t, router, http.MethodDelete, "/accounts/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/accounts/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_BreakerEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/breakers/"+external.ServiceDomesticTransfer, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Closed", resp.State)

	rec = doRequest(t, router, http.MethodGet, "/breakers/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Healthz(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
