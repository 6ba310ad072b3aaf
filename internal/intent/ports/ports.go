package ports

import "civitas/pkg/platform/audit"

// AuditPublisher receives effective, revoked and withdrawn transitions and
// must succeed for them to apply.
type AuditPublisher = audit.ComplianceEmitter

// OpsTracker receives submission, delivery and match events on a best-effort
// basis.
type OpsTracker = audit.OpsTracker
