// Package http exposes the provisioner's REST API with Huma.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/liftoff/provisioner/internal/app"
	"github.com/liftoff/provisioner/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// StepStatuses is the per-step view of a tenant's provisioning pipeline.
type StepStatuses struct {
	DB           string `json:"db" doc:"Database schema step"`
	DNS          string `json:"dns" doc:"DNS registration step"`
	Credentials  string `json:"credentials" doc:"Credential issuance step"`
	Billing      string `json:"billing" doc:"Billing activation step"`
	Notification string `json:"notification" doc:"Welcome notification step"`
}

// TenantResponse is the API representation of a tenant.
type TenantResponse struct {
	ID           string       `json:"id" doc:"Unique identifier"`
	Name         string       `json:"name" doc:"Display name"`
	Subdomain    string       `json:"subdomain" doc:"Subdomain the tenant is served under"`
	PlanID       string       `json:"planId" doc:"Subscription plan"`
	Status       string       `json:"status" doc:"Overall lifecycle state"`
	Steps        StepStatuses `json:"steps" doc:"Per-step provisioning statuses"`
	CreatedAt    string       `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt    string       `json:"updatedAt" doc:"Last update timestamp (ISO 8601)"`
	CancelledAt  string       `json:"cancelledAt,omitempty" doc:"Cancellation timestamp (ISO 8601)"`
	CancelReason string       `json:"cancelReason,omitempty" doc:"Why provisioning was cancelled"`
}

func toTenantResponse(t domain.Tenant) TenantResponse {
	resp := TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Subdomain: t.Subdomain,
		PlanID:    t.PlanID,
		Status:    string(t.Status),
		Steps: StepStatuses{
			DB:           string(t.DBStatus),
			DNS:          string(t.DNSStatus),
			Credentials:  string(t.CredentialsStatus),
			Billing:      string(t.BillingStatus),
			Notification: string(t.NotificationStatus),
		},
		CreatedAt:    t.CreatedAt.Format(timeFormat),
		UpdatedAt:    t.UpdatedAt.Format(timeFormat),
		CancelReason: t.CancelReason,
	}
	if t.CancelledAt != nil {
		resp.CancelledAt = t.CancelledAt.Format(timeFormat)
	}
	return resp
}

// EventLogResponse is the API representation of one audit trail entry.
type EventLogResponse struct {
	ID        int64  `json:"id" doc:"Sequence number"`
	TenantID  string `json:"tenantId" doc:"Tenant the entry belongs to"`
	EventType string `json:"eventType" doc:"What happened"`
	Outcome   string `json:"outcome" doc:"Success, warning or error"`
	Payload   any    `json:"payload" doc:"Event payload as recorded"`
	Timestamp string `json:"timestamp" doc:"When it happened (ISO 8601)"`
}

func toEventLogResponse(e domain.EventLogEntry) EventLogResponse {
	return EventLogResponse{
		ID:        e.ID,
		TenantID:  e.TenantID,
		EventType: e.EventType,
		Outcome:   string(e.Outcome),
		Payload:   e.Payload,
		Timestamp: e.Timestamp.Format(timeFormat),
	}
}

// --- Create Tenant ---

type CreateTenantInput struct {
	Body struct {
		Name      string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Subdomain string `json:"subdomain" minLength:"1" maxLength:"30" pattern:"^[a-z0-9]+$" doc:"Subdomain (lowercase letters and digits)"`
		PlanID    string `json:"planId,omitempty" default:"free" doc:"Subscription plan"`
	}
}

type CreateTenantOutput struct {
	Status int
	Body   TenantResponse
}

// --- Get Tenant ---

type GetTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body TenantResponse
}

// --- List Tenants ---

type ListTenantsInput struct {
	Status string `query:"status" required:"false" doc:"Filter by overall status"`
	Limit  int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

// --- Cancel ---

type CancelTenantInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Reason string `json:"reason,omitempty" maxLength:"500" doc:"Why provisioning is being cancelled"`
	}
}

type CancelTenantOutput struct {
	Body TenantResponse
}

// --- Delete ---

type DeleteTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type DeleteTenantOutput struct {
	Status int
}

// --- Admin transitions ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Event string `json:"event" doc:"Lifecycle event to trigger" enum:"suspend,reactivate,fail"`
	}
}

type TransitionOutput struct {
	Body TenantResponse
}

// --- Event log ---

type TenantEventsInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type TenantEventsOutput struct {
	Body []EventLogResponse
}

type AllEventsOutput struct {
	Body []EventLogResponse
}

// Register adds all provisioner API routes to the Huma API.
func Register(api huma.API, svc *app.TenantService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tenant",
		Method:        http.MethodPost,
		Path:          "/api/v1/tenants",
		Summary:       "Create a tenant and start provisioning",
		Tags:          []string{"Tenants"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		tenant, err := svc.Create(ctx, input.Body.Name, input.Body.Subdomain, input.Body.PlanID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateTenantOutput{Status: http.StatusCreated, Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}

		tenants, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = toTenantResponse(t)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/cancel",
		Summary:     "Cancel an in-flight provisioning run",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CancelTenantInput) (*CancelTenantOutput, error) {
		tenant, err := svc.Cancel(ctx, input.ID, input.Body.Reason)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CancelTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-tenant",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tenants/{id}",
		Summary:       "Delete a tenant and release its resources",
		Tags:          []string{"Tenants"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteTenantInput) (*DeleteTenantOutput, error) {
		if _, err := svc.Delete(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &DeleteTenantOutput{Status: http.StatusNoContent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/events",
		Summary:     "Trigger an administrative lifecycle event",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		tenant, err := svc.Transition(ctx, input.ID, domain.Event(input.Body.Event))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TransitionOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tenant-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}/events",
		Summary:     "Audit trail for one tenant",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *TenantEventsInput) (*TenantEventsOutput, error) {
		entries, err := svc.Events(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]EventLogResponse, len(entries))
		for i, e := range entries {
			resp[i] = toEventLogResponse(e)
		}
		return &TenantEventsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "all-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/events",
		Summary:     "Audit trail across all tenants",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, _ *struct{}) (*AllEventsOutput, error) {
		entries, err := svc.AllEvents(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]EventLogResponse, len(entries))
		for i, e := range entries {
			resp[i] = toEventLogResponse(e)
		}
		return &AllEventsOutput{Body: resp}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrTenantNotFound) {
		return huma.Error404NotFound("tenant not found")
	}
	if errors.Is(err, domain.ErrPlanNotFound) {
		return huma.Error404NotFound("plan not found")
	}

	var subErr *domain.SubdomainConflictError
	if errors.As(err, &subErr) {
		return huma.Error409Conflict(subErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var stepErr *domain.StepStateError
	if errors.As(err, &stepErr) {
		return huma.Error422UnprocessableEntity(stepErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
