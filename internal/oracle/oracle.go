// Package oracle talks to large-language-model providers that read pricelist
// text and sheet samples on our behalf.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var (
	// ErrNotConfigured is returned when a provider has no API key.
	ErrNotConfigured = errors.New("oracle provider not configured")
	// ErrUnknownProvider is returned for provider names outside the supported set.
	ErrUnknownProvider = errors.New("unknown oracle provider")
	// ErrEmptyResponse is returned when a provider answers without text.
	ErrEmptyResponse = errors.New("oracle returned an empty response")
)

// Completer sends one prompt and returns the model's text answer.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// StatusError carries a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Completer
	logger    *slog.Logger
}

// NewRegistry indexes the given completers by Name.
func NewRegistry(logger *slog.Logger, completers ...Completer) *Registry {
	r := &Registry{providers: make(map[string]Completer, len(completers)), logger: logger}
	for _, c := range completers {
		if c != nil {
			r.providers[c.Name()] = c
		}
	}
	return r
}

// Select returns the named provider wrapped so that a failure is retried once
// against any other configured provider.
func (r *Registry) Select(name string) (Completer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	primary, ok := r.providers[name]
	if !ok {
		if name != ProviderOpenAI && name != ProviderAnthropic {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	for other, c := range r.providers {
		if other != name {
			return &Fallback{Primary: primary, Secondary: c, Logger: r.logger}, nil
		}
	}
	return primary, nil
}

// Available lists configured provider names.
func (r *Registry) Available() []string {
	out := make([]string, 0, len(r.providers))
	for _, name := range []string{ProviderOpenAI, ProviderAnthropic} {
		if _, ok := r.providers[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Fallback retries a failed call once on the secondary provider.
type Fallback struct {
	Primary   Completer
	Secondary Completer
	Logger    *slog.Logger
}

// Name reports the primary provider.
func (f *Fallback) Name() string { return f.Primary.Name() }

// Complete calls Primary and, on failure, Secondary.
func (f *Fallback) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := f.Primary.Complete(ctx, prompt)
	if err == nil || f.Secondary == nil || ctx.Err() != nil {
		return out, err
	}
	if f.Logger != nil {
		f.Logger.Warn("oracle provider failed, falling back",
			slog.String("provider", f.Primary.Name()),
			slog.String("fallback", f.Secondary.Name()),
			slog.Any("error", err))
	}
	out, ferr := f.Secondary.Complete(ctx, prompt)
	if ferr != nil {
		return "", fmt.Errorf("oracle: %s: %w; fallback %s: %w", f.Primary.Name(), err, f.Secondary.Name(), ferr)
	}
	return out, nil
}

// ObserveFunc receives the outcome of every call.
type ObserveFunc func(provider string, err error)

type observed struct {
	Completer
	observe ObserveFunc
}

// WithObserver reports each Complete call to fn.
func WithObserver(c Completer, fn ObserveFunc) Completer {
	if fn == nil {
		return c
	}
	return &observed{Completer: c, observe: fn}
}

func (o *observed) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := o.Completer.Complete(ctx, prompt)
	o.observe(o.Completer.Name(), err)
	return out, err
}
