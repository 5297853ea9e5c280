package ports

import (
	"context"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

type AuditEventPublisher interface {
	PublishAudit(ctx context.Context, evt domain.AuditEvent) error
}
