// Copyright 2026 The LexGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config holds metrics configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string // OTLP/HTTP collector URL
	Interval       time.Duration
}

// NewProvider creates an SDK meter provider exporting over OTLP/HTTP and
// installs it as the global provider. Callers must Shutdown it.
func NewProvider(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	var opts []otlpmetrichttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a meter from the global provider, or a no-op meter when disabled.
func New(cfg Config) *Meter {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter("lexguard")}
	}
	return &Meter{meter: otel.Meter(cfg.ServiceName)}
}

// NewFromProvider builds a meter on an explicit provider (tests, custom exporters).
func NewFromProvider(p metric.MeterProvider, name string) *Meter {
	return &Meter{meter: p.Meter(name)}
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateGauge creates a new synchronous gauge metric
func (m *Meter) CreateGauge(name, description string) (metric.Int64Gauge, error) {
	gauge, err := m.meter.Int64Gauge(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge %s: %w", name, err)
	}
	return gauge, nil
}

// Instruments are the domain metrics shared by the authorization services.
type Instruments struct {
	AuthzDecisions     metric.Int64Counter
	InvitationsCreated metric.Int64Counter
	InvitationsRevoked metric.Int64Counter
	RoleChanges        metric.Int64Counter
	InvitationsPending metric.Int64Gauge
}

// NewInstruments registers every domain instrument on m.
func NewInstruments(m *Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	if in.AuthzDecisions, err = m.CreateCounter("authz_decisions_total", "Permission checks by result"); err != nil {
		return nil, err
	}
	if in.InvitationsCreated, err = m.CreateCounter("invitations_created_total", "Invitations issued"); err != nil {
		return nil, err
	}
	if in.InvitationsRevoked, err = m.CreateCounter("invitations_revoked_total", "Invitations revoked"); err != nil {
		return nil, err
	}
	if in.RoleChanges, err = m.CreateCounter("role_changes_total", "User role changes by result"); err != nil {
		return nil, err
	}
	if in.InvitationsPending, err = m.CreateGauge("invitations_pending", "Invitations currently pending"); err != nil {
		return nil, err
	}
	return &in, nil
}

// Noop returns instruments that record nothing.
func Noop() *Instruments {
	in, _ := NewInstruments(New(Config{}))
	return in
}

// AddDecision counts one authorization decision.
func (in *Instruments) AddDecision(ctx context.Context, permission string, allowed bool) {
	if in == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	in.AuthzDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("permission", permission),
		attribute.String("result", result),
	))
}

// AddRoleChange counts one role change attempt.
func (in *Instruments) AddRoleChange(ctx context.Context, result string) {
	if in == nil {
		return
	}
	in.RoleChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// AddInvitationCreated counts an issued invitation.
func (in *Instruments) AddInvitationCreated(ctx context.Context, role string) {
	if in == nil {
		return
	}
	in.InvitationsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

// AddInvitationRevoked counts a revoked invitation.
func (in *Instruments) AddInvitationRevoked(ctx context.Context) {
	if in == nil {
		return
	}
	in.InvitationsRevoked.Add(ctx, 1)
}

// SetPending records the number of pending invitations.
func (in *Instruments) SetPending(ctx context.Context, n int) {
	if in == nil {
		return
	}
	in.InvitationsPending.Record(ctx, int64(n))
}
