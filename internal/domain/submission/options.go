package submission

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// Options configures a Machine. Zero values are replaced by defaults.
type Options struct {
	// ReturnURL is where the processor sends the customer after an extra
	// authentication step.
	ReturnURL string
	Currency  string

	CreateOrderTimeout  time.Duration
	CreateIntentTimeout time.Duration
	ConfirmTimeout      time.Duration
	UpdateStatusTimeout time.Duration

	// Initial restores a persisted snapshot.
	Initial Snapshot

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	Now          func() time.Time
	NewAttemptID func() string
}

func (o *Options) setDefaults() {
	if o.Currency == "" {
		o.Currency = money.Currency
	}
	if o.CreateOrderTimeout == 0 {
		o.CreateOrderTimeout = 15 * time.Second
	}
	if o.CreateIntentTimeout == 0 {
		o.CreateIntentTimeout = 15 * time.Second
	}
	if o.ConfirmTimeout == 0 {
		o.ConfirmTimeout = 30 * time.Second
	}
	if o.UpdateStatusTimeout == 0 {
		o.UpdateStatusTimeout = 15 * time.Second
	}
	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = otel.GetMeterProvider()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewAttemptID == nil {
		o.NewAttemptID = func() string { return uuid.New().String() }
	}
}
