package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liftoff/provisioner/internal/domain"
)

const tracerName = "github.com/liftoff/provisioner/internal/adapter/otel"

// TracingRepository wraps a domain.TenantRepository with OpenTelemetry
// tracing. Each method creates a span with semantic attributes and records
// errors.
type TracingRepository struct {
	next   domain.TenantRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.TenantRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, tenant domain.Tenant) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Create",
		trace.WithAttributes(
			attribute.String("tenant.id", tenant.ID),
			attribute.String("tenant.subdomain", tenant.Subdomain),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, tenant)
	recordError(span, err)
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.GetByID",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	tenant, err := r.next.GetByID(ctx, id)
	recordError(span, err)
	return tenant, err
}

func (r *TracingRepository) GetBySubdomain(ctx context.Context, subdomain string) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.GetBySubdomain",
		trace.WithAttributes(attribute.String("tenant.subdomain", subdomain)),
	)
	defer span.End()

	tenant, err := r.next.GetBySubdomain(ctx, subdomain)
	recordError(span, err)
	return tenant, err
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}

	tenants, err := r.next.List(ctx, filter)
	recordError(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(tenants)))
	}
	return tenants, err
}

func (r *TracingRepository) Mutate(ctx context.Context, id string, fn func(*domain.Tenant) error) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Mutate",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	tenant, err := r.next.Mutate(ctx, id, fn)
	recordError(span, err)
	if err == nil {
		span.SetAttributes(attribute.String("tenant.status", string(tenant.Status)))
	}
	return tenant, err
}

func (r *TracingRepository) ListStale(ctx context.Context, olderThan time.Time) ([]domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.ListStale",
		trace.WithAttributes(attribute.String("older_than", olderThan.UTC().Format(time.RFC3339))),
	)
	defer span.End()

	tenants, err := r.next.ListStale(ctx, olderThan)
	recordError(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(tenants)))
	}
	return tenants, err
}

func (r *TracingRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Delete",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	err := r.next.Delete(ctx, id)
	recordError(span, err)
	return err
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
