package service

import (
	"go.uber.org/zap"

	"secmon-service/internal/repository/clickhouse"
)

// ServiceFactory creates and manages service instances.
type ServiceFactory struct {
	auditRepo  clickhouse.AuditRepository
	statsCache StatsCache
	eventIndex EventIndexer
	alerts     AlertPublisher
	opts       SecurityServiceOptions
	logger     *zap.Logger

	securityService *SecurityService
}

func NewServiceFactory(
	auditRepo clickhouse.AuditRepository,
	statsCache StatsCache,
	eventIndex EventIndexer,
	alerts AlertPublisher,
	opts SecurityServiceOptions,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		auditRepo:  auditRepo,
		statsCache: statsCache,
		eventIndex: eventIndex,
		alerts:     alerts,
		opts:       opts,
		logger:     logger,
	}
}

// SecurityService returns the security service singleton.
func (f *ServiceFactory) SecurityService() *SecurityService {
	if f.securityService == nil {
		f.securityService = NewSecurityService(
			f.auditRepo,
			f.statsCache,
			f.eventIndex,
			f.alerts,
			f.opts,
			f.logger,
		)
	}
	return f.securityService
}

// Cleanup cleans up all services.
func (f *ServiceFactory) Cleanup() {
	if f.securityService != nil {
		f.securityService.Cleanup()
	}
}
