package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/sumire/providerlab/internal/domain"
)

// FailureRecorder persists failures without blocking the caller.
type FailureRecorder interface {
	Dispatch(ctx context.Context, failure any, provider domain.ProviderID)
}

// StatusUpdater applies a single guarded status transition.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, provider domain.ProviderID, column domain.Column, guard domain.Guard, status domain.Status) (*domain.Provider, error)
}

// StatusUpdate is one lifecycle callback routed to the status table.
type StatusUpdate struct {
	Provider  string        `validate:"required"`
	Column    domain.Column `validate:"required,column"`
	Guard     domain.Guard  `validate:"min=1,dive,status"`
	NewStatus domain.Status `validate:"required,status"`
	// Err is the failure reported by an error-path callback, if any.
	Err any `validate:"-"`
}

// Dispatcher routes OAuth lifecycle callbacks to the status updater and the
// error logger.
type Dispatcher struct {
	statuses StatusUpdater
	failures FailureRecorder
	validate *validator.Validate
	log      *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(statuses StatusUpdater, failures FailureRecorder, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	v := validator.New()
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return domain.Status(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("column", func(fl validator.FieldLevel) bool {
		return domain.Column(fl.Field().String()).Valid()
	})

	return &Dispatcher{statuses: statuses, failures: failures, validate: v, log: log}
}

// HandleStatusUpdate validates the provider, hands any reported failure to
// the error logger without waiting for it, and applies the transition.
// Only an invalid provider or a malformed update is returned as an error.
func (d *Dispatcher) HandleStatusUpdate(ctx context.Context, u StatusUpdate) error {
	provider, err := domain.ParseProviderID(u.Provider)
	if err != nil {
		return err
	}
	if err := d.validate.Struct(u); err != nil {
		return toValidationError(err)
	}

	if u.Err != nil {
		d.failures.Dispatch(ctx, u.Err, provider)
	}

	_, err = d.statuses.UpdateStatus(ctx, provider, u.Column, u.Guard, u.NewStatus)
	return err
}

// Handle maps an operation outcome to its column: success marks it tested,
// failure marks it failed. Profile success is ignored for providers that
// have no profile endpoint.
func (d *Dispatcher) Handle(ctx context.Context, ev domain.OperationEvent) error {
	provider, err := domain.ParseProviderID(ev.Provider)
	if err != nil {
		return err
	}

	column := ev.Operation.Column()
	if column == "" {
		return &domain.ValidationError{Field: "operation", Message: fmt.Sprintf("unknown operation %q", ev.Operation)}
	}

	if ev.Operation == domain.OperationProfile && !ev.Failed() && !provider.Capabilities().ProfileEndpoint {
		d.log.Debug("ignoring profile success for provider without profile endpoint", "provider", provider)
		return nil
	}

	t := domain.MarkTested
	if ev.Failed() {
		t = domain.MarkFailed
	}

	return d.HandleStatusUpdate(ctx, StatusUpdate{
		Provider:  ev.Provider,
		Column:    column,
		Guard:     t.Guard,
		NewStatus: t.Target,
		Err:       ev.Err,
	})
}

func toValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return &domain.ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed on '%s' validation", fe.Tag()),
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}
