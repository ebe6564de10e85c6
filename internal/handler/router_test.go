package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"voucherpro/internal/logger"
	"voucherpro/internal/middleware"
	"voucherpro/internal/repository"
	"voucherpro/internal/service"
	"voucherpro/internal/session"
	"voucherpro/internal/testutil"
	"voucherpro/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPassword = "s3cret-pass"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type nopPublisher struct{}

func (nopPublisher) Publish(uuid.UUID, string, interface{}) {}

// newTestRouter wires every handler over a fresh SQLite database the same way cmd/api does.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()

	txManager := repository.NewTransactionManager(db)
	companyRepo := repository.NewCompanyRepository(db)
	userRepo := repository.NewUserRepository(db)
	crmRepo := repository.NewCRMRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	auditService := service.NewAuditService(repository.NewAuditRepository(db), log)
	authService := service.NewAuthService(txManager, companyRepo, userRepo, repository.NewSessionRepository(db), session.NewMemoryCache(), auditService, service.AuthSettings{
		Secret:            []byte("test-secret"),
		SessionTTL:        time.Hour,
		MaxFailedAttempts: 3,
		LockDuration:      15 * time.Minute,
		CacheTTL:          time.Minute,
	}, log)
	companyService := service.NewCompanyService(txManager, companyRepo, auditService)
	crmService := service.NewCRMService(txManager, crmRepo, auditService, "NG")

	router := gin.New()
	router.MaxMultipartMemory = MaxAttachmentSize
	router.Use(logger.GinMiddleware(log), logger.Recovery(log))

	NewAuthHandler(authService, companyService, time.Hour, false).RegisterPublicRoutes(router.Group(""))
	protected := router.Group("", middleware.RequireAuth(authService))
	NewAuthHandler(authService, companyService, time.Hour, false).RegisterRoutes(protected)
	NewUserHandler(service.NewUserService(txManager, userRepo, authService, auditService)).RegisterRoutes(protected)
	NewCRMHandler(crmService).RegisterRoutes(protected)
	NewInvoiceHandler(service.NewInvoiceService(txManager, invoiceRepo, crmRepo, crmService, auditService)).RegisterRoutes(protected)
	NewVoucherHandler(service.NewVoucherService(txManager, repository.NewVoucherRepository(db), companyRepo, crmService, auditService, nopPublisher{}, log)).RegisterRoutes(protected)
	NewReportHandler(service.NewReportService(repository.NewReportRepository(db), invoiceRepo)).RegisterRoutes(protected)
	NewAuditHandler(auditService).RegisterRoutes(protected)
	return router
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Kind       string          `json:"kind"`
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// register creates company "acme" and returns the admin bearer token.
func register(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/companies/register", "", gin.H{
		"company_name":   "Acme Ltd",
		"company_code":   "acme",
		"admin_username": "admin",
		"admin_password": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res service.LoginResponse
	decode(t, w, &res)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func seed(t *testing.T, router *gin.Engine, token string) {
	t.Helper()
	for _, call := range []struct {
		path string
		body gin.H
	}{
		{"/api/vendors", gin.H{"name": "Globex Ltd", "bank_name": "First Bank"}},
		{"/api/staff", gin.H{"name": "Jane Doe"}},
		{"/api/accounts", gin.H{"code": "2000", "name": "Trade Payables", "type": "Liability"}},
		{"/api/accounts", gin.H{"code": "6000", "name": "Office Expenses", "type": "Expense"}},
	} {
		w := do(t, router, http.MethodPost, call.path, token, call.body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func voucherPayload() gin.H {
	return gin.H{
		"vendor":    "Globex Ltd",
		"requester": "Jane Doe",
		"lines": []gin.H{
			{"description": "Paper", "account_name": "Office Expenses", "amount": "100", "vat_percent": "5"},
			{"description": "Toner", "account_name": "Office Expenses", "amount": "200"},
		},
	}
}

func TestAuthEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := register(t, router)

	w := do(t, router, http.MethodPost, "/api/auth/login", "", gin.H{"company_code": "acme", "username": "admin", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode(t, w, nil).Kind)

	w = do(t, router, http.MethodPost, "/api/auth/login", "", gin.H{"company_code": "acme", "username": "admin", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Result().Cookies(), "login sets the session cookie")

	w = do(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me service.MeResponse
	decode(t, w, &me)
	assert.Equal(t, "admin", me.User.Username)
	assert.Equal(t, "acme", me.Company.Code)

	w = do(t, router, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked sessions are rejected")
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/companies/register", "", gin.H{
		"company_name":   "Acme Ltd",
		"company_code":   "acme",
		"admin_username": "admin",
		"admin_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode(t, w, nil).Kind)
}

func TestCreateAccount_UnknownTypeRejectedAtBinding(t *testing.T) {
	router := newTestRouter(t)
	token := register(t, router)

	w := do(t, router, http.MethodPost, "/api/accounts", token, gin.H{"code": "4000", "name": "Sales", "type": "Revenue"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w, nil).Error, "Invalid request payload")
}

func TestVoucherEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := register(t, router)
	seed(t, router, token)

	payload, err := json.Marshal(voucherPayload())
	require.NoError(t, err)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("payload", string(payload)))
	part, err := mw.CreateFormFile("file", "receipt.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("paid in full"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/vouchers", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created service.VoucherResponse
	decode(t, w, &created)
	assert.Equal(t, "305.00", created.TotalPayable)
	assert.Equal(t, "receipt.txt", created.FileName)
	assert.True(t, created.HasAttachment)

	w = do(t, router, http.MethodGet, "/api/vouchers/"+created.ID+"/attachment", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid in full", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="receipt.txt"`)

	w = do(t, router, http.MethodGet, "/api/vouchers/"+created.ID+"/lines", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lines []service.VoucherLineResponse
	decode(t, w, &lines)
	assert.Len(t, lines, 2)

	w = do(t, router, http.MethodPut, "/api/vouchers/"+created.ID+"/status", token, gin.H{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "drafts must be submitted first")

	w = do(t, router, http.MethodPut, "/api/vouchers/"+created.ID+"/status", token, gin.H{"status": "submitted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPut, "/api/vouchers/"+created.ID+"/status", token, gin.H{"status": "Approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var approved service.VoucherResponse
	decode(t, w, &approved)
	assert.Equal(t, "approved", approved.Status)
	assert.NotNil(t, approved.ApprovedBy)

	w = do(t, router, http.MethodPut, "/api/vouchers/"+created.ID+"/status", token, gin.H{"status": "draft"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "approved vouchers cannot go back to draft")

	w = do(t, router, http.MethodGet, "/api/vouchers/"+created.ID+"/pdf", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.VoucherNumber+".pdf")

	w = do(t, router, http.MethodGet, "/api/vouchers?status=approved", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []service.VoucherResponse
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = do(t, router, http.MethodGet, "/api/reports/export?report=vouchers", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "voucherpro-vouchers-report.xlsx")
}

func TestCreateVoucher_MultipartWithoutPayload(t *testing.T) {
	router := newTestRouter(t)
	token := register(t, router)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "nothing else"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/vouchers", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payload field is required", decode(t, w, nil).Error)
}

func TestInvoiceUpdateAndDelete_NotImplemented(t *testing.T) {
	router := newTestRouter(t)
	token := register(t, router)
	seed(t, router, token)

	w := do(t, router, http.MethodPost, "/api/invoices", token, gin.H{
		"invoice_number": "INV-001",
		"vendor":         "Globex Ltd",
		"invoice_date":   "2026-04-01",
		"vatable_amount": "1000",
		"vat_rate":       "7.5",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv service.InvoiceResponse
	decode(t, w, &inv)
	assert.Equal(t, "1075.00", inv.TotalAmount)

	w = do(t, router, http.MethodPut, "/api/invoices/"+inv.ID, token, gin.H{"invoice_number": "INV-001", "vendor": "Globex Ltd"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "not_implemented", decode(t, w, nil).Kind)

	w = do(t, router, http.MethodDelete, "/api/invoices/"+inv.ID, token, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestPermissionGuards(t *testing.T) {
	router := newTestRouter(t)
	token := register(t, router)

	w := do(t, router, http.MethodPost, "/api/users", token, gin.H{
		"username":    "clerk",
		"password":    testPassword,
		"role":        "user",
		"permissions": gin.H{"can_create_voucher": true},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/auth/login", "", gin.H{"company_code": "acme", "username": "clerk", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	var login service.LoginResponse
	decode(t, w, &login)

	tests := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPost, "/api/vendors", gin.H{"name": "Globex Ltd"}},
		{http.MethodPost, "/api/invoices", gin.H{"invoice_number": "INV-1", "vendor": "Globex Ltd"}},
		{http.MethodGet, "/api/users", nil},
		{http.MethodGet, "/api/audit-logs", nil},
		{http.MethodPut, "/api/company", gin.H{"name": "Hijacked"}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, login.Token, tt.body)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "forbidden", decode(t, w, nil).Kind)
		})
	}

	w = do(t, router, http.MethodGet, "/api/vendors", login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
