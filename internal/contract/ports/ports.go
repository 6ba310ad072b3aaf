package ports

import "civitas/pkg/platform/audit"

// AuditPublisher receives conclusion, termination and invalidation events.
// A publish failure aborts the transition.
type AuditPublisher = audit.ComplianceEmitter
