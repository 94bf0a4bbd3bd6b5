package storage

import (
	"context"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
)

type CompanyUsage struct {
	CompanyID   uint   `json:"company_id"`
	CompanyName string `json:"company_name"`
	StorageKB   int64  `json:"storage_kb"`
	UsedKB      int64  `json:"used_kb"`
	Storage     string `json:"storage"`
	Used        string `json:"used"`
}

// StorageUsage reports quota and usage of every company.
func (s *Server) StorageUsage(ctx context.Context, p *auth.Principal) ([]CompanyUsage, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	rows, err := s.repo.UsageByCompany(ctx)
	if err != nil {
		return nil, internal(err)
	}
	res := make([]CompanyUsage, 0, len(rows))
	for _, r := range rows {
		res = append(res, CompanyUsage{
			CompanyID:   r.CompanyID,
			CompanyName: r.CompanyName,
			StorageKB:   r.Storage,
			UsedKB:      r.Used,
			Storage:     FormatSize(float64(r.Storage)),
			Used:        FormatSize(float64(r.Used)),
		})
	}
	return res, nil
}
