// Package tools is the catalog of operations the assistant may invoke on a
// caller's behalf. Every tool decodes and validates its arguments, runs
// against the services as the explicitly supplied caller and reports a
// uniform Result. Errors and panics never cross the Execute boundary.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"goalwise/internal/auth"
	apperrors "goalwise/internal/errors"
	"goalwise/internal/logger"
	"goalwise/internal/models"
	"goalwise/internal/services"
	appvalidator "goalwise/internal/validator"
)

// Result is the JSON object returned to the model. It always carries a
// boolean "success"; failures add "error" and "code".
type Result map[string]any

// Success reports the result's success flag.
func (r Result) Success() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// JSON encodes the result for the model. Encoding failures degrade to a
// failure result so that something is always returned.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"result could not be encoded"}`
	}
	return string(data)
}

func ok(payload Result) Result {
	if payload == nil {
		payload = Result{}
	}
	payload["success"] = true
	return payload
}

func failure(err error) Result {
	r := Result{
		"success": false,
		"error":   err.Error(),
		"code":    apperrors.CodeOf(err),
	}
	var amb *ambiguousError
	if errors.As(err, &amb) {
		r["matches"] = amb.matches
	}
	return r
}

// Tool is one catalog entry.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	// Mutates reports whether a successful call changes the caller's data.
	Mutates() bool
	Execute(ctx context.Context, caller auth.CallerID, args json.RawMessage) Result
}

// Services are the dependencies tools run against.
type Services struct {
	Goals         services.GoalServicer
	Assets        services.AssetServicer
	Pricing       services.PricingServicer
	Dashboard     services.DashboardServicer
	Suggestions   services.SuggestionServicer
	InflationRate float64
}

// handler is the typed body of a tool.
type handler[A any] func(ctx context.Context, svc *Services, args *A) (Result, error)

// tool adapts a typed handler to the Tool interface.
type tool[A any] struct {
	name        string
	description string
	schema      Schema
	mutates     bool
	svc         *Services
	run         handler[A]
}

func (t *tool[A]) Name() string        { return t.name }
func (t *tool[A]) Description() string { return t.description }
func (t *tool[A]) Schema() Schema      { return t.schema }
func (t *tool[A]) Mutates() bool       { return t.mutates }

// Execute decodes args into A, validates them and runs the handler as
// caller. Mutating tools report the cache invalidation they caused.
func (t *tool[A]) Execute(ctx context.Context, caller auth.CallerID, raw json.RawMessage) (result Result) {
	log := logger.Named("tools")
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.Errorw("tool panicked", "tool", t.name, "caller", caller, "panic", p)
			result = failure(apperrors.WithMessage(apperrors.ErrInternalServer, "Tool "+t.name+" failed unexpectedly"))
		}
		if result.Success() {
			log.Debugw("tool executed", "tool", t.name, "caller", caller,
				"duration_ms", time.Since(start).Milliseconds(), "success", true)
		} else {
			log.Warnw("tool failed", "tool", t.name, "caller", caller,
				"duration_ms", time.Since(start).Milliseconds(), "error", result["error"])
		}
	}()

	if strings.TrimSpace(string(caller)) == "" {
		return failure(apperrors.ErrUnauthenticated)
	}

	args, err := decodeArgs[A](raw)
	if err != nil {
		return failure(err)
	}

	ctx = auth.WithCaller(ctx, caller)
	ctx = services.WithAuditSource(ctx, models.AuditSourceAgent, "")

	payload, err := t.run(ctx, t.svc, args)
	if err != nil {
		return failure(err)
	}
	result = ok(payload)
	if t.mutates {
		result["dashboard_invalidated"] = true
	}
	return result
}

// decodeArgs unmarshals raw into a fresh A and validates it. Unknown
// fields are rejected so that misspelled arguments are not silently
// ignored.
func decodeArgs[A any](raw json.RawMessage) (*A, error) {
	args := new(A)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(args); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidArguments, "Invalid arguments: "+err.Error())
	}

	if err := appvalidator.New().Struct(args); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidArguments, describeValidation(err))
	}
	return args, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid arguments: " + err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			if fe.Param() != "" {
				parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			} else {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
		}
	}
	return "Invalid arguments: " + strings.Join(parts, "; ")
}

// Registry is the static tool catalog.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry builds the full catalog bound to svc.
func NewRegistry(svc *Services) *Registry {
	all := append(append(goalTools(svc), assetTools(svc)...), insightTools(svc)...)
	r := &Registry{tools: all, byName: make(map[string]Tool, len(all))}
	for _, t := range all {
		if _, dup := r.byName[t.Name()]; dup {
			panic("duplicate tool " + t.Name())
		}
		r.byName[t.Name()] = t
	}
	return r
}

// Tools returns the catalog sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Get returns the tool called name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, found := r.byName[name]
	return t, found
}

// Execute runs the named tool. An unknown name is a failed result.
func (r *Registry) Execute(ctx context.Context, caller auth.CallerID, name string, args json.RawMessage) Result {
	t, found := r.byName[name]
	if !found {
		return failure(apperrors.WithMessage(apperrors.ErrInvalidArguments, "Unknown tool: "+name))
	}
	return t.Execute(ctx, caller, args)
}
