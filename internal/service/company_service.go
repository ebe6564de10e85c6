package service

import (
	"context"
	"strings"
	"time"

	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/pkg/apperror"
)

type CompanyResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Code           string `json:"code"`
	RCNumber       string `json:"rc_number"`
	TIN            string `json:"tin"`
	Address        string `json:"address"`
	AuthorizerName string `json:"authorizer_name"`
	ApproverName   string `json:"approver_name"`
	CreatedAt      string `json:"created_at"`
}

// UpdateCompanyRequest carries the printable company details. Empty fields are cleared.
type UpdateCompanyRequest struct {
	Name           string `json:"name" binding:"required"`
	RCNumber       string `json:"rc_number"`
	TIN            string `json:"tin"`
	Address        string `json:"address"`
	AuthorizerName string `json:"authorizer_name"`
	ApproverName   string `json:"approver_name"`
}

type CompanyService interface {
	GetCompany(ctx context.Context) (*CompanyResponse, error)
	UpdateCompany(ctx context.Context, req UpdateCompanyRequest) (*CompanyResponse, error)
}

type companyService struct {
	txManager repository.TransactionManager
	repo      repository.CompanyRepository
	audit     AuditService
}

func NewCompanyService(txManager repository.TransactionManager, repo repository.CompanyRepository, audit AuditService) CompanyService {
	return &companyService{txManager: txManager, repo: repo, audit: audit}
}

func toCompanyResponse(c model.Company) CompanyResponse {
	return CompanyResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		Code:           c.Code,
		RCNumber:       c.RCNumber,
		TIN:            c.TIN,
		Address:        c.Address,
		AuthorizerName: c.AuthorizerName,
		ApproverName:   c.ApproverName,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}

func (s *companyService) GetCompany(ctx context.Context) (*CompanyResponse, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	company, err := s.repo.FindByID(ctx, id.CompanyID)
	if err != nil {
		return nil, lookupError(err, "company")
	}
	res := toCompanyResponse(*company)
	return &res, nil
}

func (s *companyService) UpdateCompany(ctx context.Context, req UpdateCompanyRequest) (*CompanyResponse, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		return nil, apperror.Forbidden("only an admin can change company details")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("company name is required")
	}

	var company *model.Company
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		company, findErr = s.repo.FindByID(txCtx, id.CompanyID)
		if findErr != nil {
			return lookupError(findErr, "company")
		}
		company.Name = name
		company.RCNumber = strings.TrimSpace(req.RCNumber)
		company.TIN = strings.TrimSpace(req.TIN)
		company.Address = strings.TrimSpace(req.Address)
		company.AuthorizerName = strings.TrimSpace(req.AuthorizerName)
		company.ApproverName = strings.TrimSpace(req.ApproverName)
		if updateErr := s.repo.Update(txCtx, company); updateErr != nil {
			return apperror.Wrap(updateErr, "failed to update company")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionUpdateCompany, model.EntityCompany, company.ID.String(), map[string]interface{}{"name": name}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := toCompanyResponse(*company)
	return &res, nil
}
