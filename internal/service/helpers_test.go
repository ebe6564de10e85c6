package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/internal/reqctx"
	"voucherpro/internal/session"
	"voucherpro/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const testPassword = "s3cret-pass"

type publishedEvent struct {
	CompanyID uuid.UUID
	Type      string
	Data      interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(companyID uuid.UUID, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{CompanyID: companyID, Type: eventType, Data: data})
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type testEnv struct {
	db       *gorm.DB
	logs     *observer.ObservedLogs
	events   *recordingPublisher
	cache    *session.MemoryCache
	audit    AuditService
	auth     AuthService
	company  CompanyService
	users    UserService
	crm      CRMService
	invoices InvoiceService
	vouchers VoucherService
	reports  ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDB(t, testutil.NewDB(t))
}

func newTestEnvWithDB(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	txManager := repository.NewTransactionManager(db)
	companyRepo := repository.NewCompanyRepository(db)
	userRepo := repository.NewUserRepository(db)
	crmRepo := repository.NewCRMRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	env := &testEnv{
		db:     db,
		logs:   logs,
		events: &recordingPublisher{},
		cache:  session.NewMemoryCache(),
	}
	env.audit = NewAuditService(repository.NewAuditRepository(db), log)
	env.auth = NewAuthService(txManager, companyRepo, userRepo, repository.NewSessionRepository(db), env.cache, env.audit, AuthSettings{
		Secret:            []byte("test-secret"),
		SessionTTL:        time.Hour,
		MaxFailedAttempts: 3,
		LockDuration:      15 * time.Minute,
		CacheTTL:          time.Minute,
	}, log)
	env.company = NewCompanyService(txManager, companyRepo, env.audit)
	env.users = NewUserService(txManager, userRepo, env.auth, env.audit)
	env.crm = NewCRMService(txManager, crmRepo, env.audit, "NG")
	env.invoices = NewInvoiceService(txManager, invoiceRepo, crmRepo, env.crm, env.audit)
	env.vouchers = NewVoucherService(txManager, repository.NewVoucherRepository(db), companyRepo, env.crm, env.audit, env.events, log)
	env.reports = NewReportService(repository.NewReportRepository(db), invoiceRepo)
	return env
}

// registerCompany creates a tenant and returns a context acting as its admin.
func (e *testEnv) registerCompany(t *testing.T, code string) (context.Context, *LoginResponse) {
	t.Helper()
	res, err := e.auth.RegisterCompany(context.Background(), RegisterCompanyRequest{
		CompanyName:   "Company " + code,
		CompanyCode:   code,
		RCNumber:      "RC123456",
		AdminUsername: "admin",
		AdminPassword: testPassword,
	})
	require.NoError(t, err)

	identity, err := e.auth.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	return reqctx.WithIdentity(context.Background(), identity), res
}

// userCtx provisions a non-admin user with flags and returns a context acting as them.
func (e *testEnv) userCtx(t *testing.T, adminCtx context.Context, username string, flags model.PermissionFlags) context.Context {
	t.Helper()
	created, err := e.users.CreateUser(adminCtx, CreateUserRequest{
		Username:    username,
		Password:    testPassword,
		Role:        model.RoleUser,
		Permissions: flags,
	})
	require.NoError(t, err)

	admin, _ := reqctx.FromContext(adminCtx)
	return reqctx.WithIdentity(context.Background(), reqctx.Identity{
		UserID:      uuid.MustParse(created.ID),
		Username:    created.Username,
		CompanyID:   admin.CompanyID,
		Role:        model.RoleUser,
		Permissions: created.Permissions,
	})
}

// seedMasterData adds the vendor, staff member and accounts most tests reference.
func (e *testEnv) seedMasterData(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := e.crm.CreateVendor(ctx, VendorRequest{Name: "Globex Ltd", BankName: "First Bank", BankAccount: "0123456789"})
	require.NoError(t, err)
	_, err = e.crm.CreateStaff(ctx, StaffRequest{Name: "Jane Doe", Department: "Finance"})
	require.NoError(t, err)
	for _, a := range []AccountRequest{
		{Code: "2000", Name: "Trade Payables", Type: model.AccountTypeLiability},
		{Code: "6000", Name: "Office Expenses", Type: model.AccountTypeExpense},
		{Code: "4000", Name: "Sales", Type: model.AccountTypeIncome},
	} {
		_, err = e.crm.CreateAccount(ctx, a)
		require.NoError(t, err)
	}
}

func (e *testEnv) countAudit(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}

func (e *testEnv) count(t *testing.T, table interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(table).Count(&n).Error)
	return n
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func voucherRequest(lines ...VoucherLineRequest) CreateVoucherRequest {
	return CreateVoucherRequest{
		Vendor:      "Globex Ltd",
		Requester:   "Jane Doe",
		BankDetails: "First Bank 0123456789",
		Description: "Office supplies",
		Lines:       lines,
	}
}

func mustIdentity(t *testing.T, ctx context.Context) reqctx.Identity {
	t.Helper()
	id, ok := reqctx.FromContext(ctx)
	require.True(t, ok)
	return id
}
