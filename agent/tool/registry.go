package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
	"github.com/xeipuuv/gojsonschema"
)

var _ contractx.ToolDispatcher = (*Registry)(nil)

var validParamTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

type Parameter struct {
	Name        string
	Type        string
	Items       string // element type, arrays only
	Description string
	Required    bool
}

type Descriptor struct {
	Name        string
	Description string
	Parameters  []Parameter
}

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

type Registration struct {
	Descriptor Descriptor
	Executor   Executor
}

type entry struct {
	spec     contractx.ToolSpec
	schema   *gojsonschema.Schema
	executor Executor
}

// Registry advertises tool capabilities and dispatches calls by name.
type Registry struct {
	order   []string
	entries map[string]entry
	strict  bool
}

type Option func(*Registry)

// WithStrictArguments rejects calls whose arguments fail schema validation.
func WithStrictArguments(strict bool) Option {
	return func(r *Registry) {
		r.strict = strict
	}
}

func NewRegistry(registrations []Registration, opts ...Option) (*Registry, error) {
	r := &Registry{entries: make(map[string]entry, len(registrations))}
	for _, opt := range opts {
		opt(r)
	}
	for _, reg := range registrations {
		if err := r.Register(reg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(reg Registration) error {
	desc := reg.Descriptor
	if err := validateDescriptor(desc); err != nil {
		return err
	}
	if reg.Executor == nil {
		return fmt.Errorf("%w: tool %s has no executor", contractx.ErrValidation, desc.Name)
	}
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("%w: tool %s registered twice", contractx.ErrValidation, desc.Name)
	}

	params := parametersSchema(desc)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("%w: compile schema for %s: %v", contractx.ErrValidation, desc.Name, err)
	}

	r.entries[desc.Name] = entry{
		spec: contractx.ToolSpec{
			Name:        desc.Name,
			Description: desc.Description,
			Parameters:  params,
		},
		schema:   schema,
		executor: reg.Executor,
	}
	r.order = append(r.order, desc.Name)
	return nil
}

// Specs lists the registered tools in registration order.
func (r *Registry) Specs() []contractx.ToolSpec {
	specs := make([]contractx.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.entries[name].spec)
	}
	return specs
}

// Dispatch always returns a result; tool failures never escape as errors.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (result contractx.ToolResult) {
	logger := log.Ctx(ctx).With().Str("tool", name).Logger()

	e, ok := r.entries[name]
	if !ok {
		logger.Warn().Err(&contractx.ToolError{Kind: contractx.ToolErrUnknownTool, Tool: name}).Msg("tool dispatch rejected")
		return contractx.ToolResult{
			Success: false,
			Error:   fmt.Sprintf("Function '%s' is not implemented.", name),
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := validateArguments(e.schema, args); err != nil {
		toolErr := &contractx.ToolError{Kind: contractx.ToolErrArguments, Tool: name, Err: err}
		if r.strict {
			logger.Warn().Err(toolErr).Msg("tool arguments rejected")
			return contractx.ToolResult{Success: false, Error: toolErr.Error()}
		}
		logger.Warn().Err(toolErr).Msg("tool arguments do not match schema; forwarding as parsed")
	}

	defer func() {
		if rec := recover(); rec != nil {
			toolErr := &contractx.ToolError{Kind: contractx.ToolErrExecution, Tool: name, Err: fmt.Errorf("panic: %v", rec)}
			logger.Error().Err(toolErr).Msg("tool execution panicked")
			result = contractx.ToolResult{Success: false, Error: toolErr.Error()}
		}
	}()

	out, err := e.executor(ctx, name, args)
	if err != nil {
		toolErr := &contractx.ToolError{Kind: contractx.ToolErrExecution, Tool: name, Err: err}
		logger.Error().Err(toolErr).Msg("tool execution failed")
		return contractx.ToolResult{Success: false, Error: err.Error()}
	}
	logger.Debug().Bool("success", out.Success).Msg("tool executed")
	return out
}

func validateDescriptor(desc Descriptor) error {
	if strings.TrimSpace(desc.Name) == "" {
		return fmt.Errorf("%w: tool name is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(desc.Description) == "" {
		return fmt.Errorf("%w: tool %s needs a description", contractx.ErrValidation, desc.Name)
	}

	seen := make(map[string]bool, len(desc.Parameters))
	for _, p := range desc.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: tool %s has an unnamed parameter", contractx.ErrValidation, desc.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: tool %s declares %s twice", contractx.ErrValidation, desc.Name, p.Name)
		}
		seen[p.Name] = true
		if !validParamTypes[p.Type] {
			return fmt.Errorf("%w: invalid parameter type %q for %s.%s", contractx.ErrValidation, p.Type, desc.Name, p.Name)
		}
		if p.Type == "array" && !validParamTypes[p.Items] {
			return fmt.Errorf("%w: array parameter %s.%s needs an item type", contractx.ErrValidation, desc.Name, p.Name)
		}
	}
	return nil
}

func parametersSchema(desc Descriptor) map[string]any {
	properties := make(map[string]any, len(desc.Parameters))
	required := []string{}
	for _, p := range desc.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Type == "array" {
			prop["items"] = map[string]any{"type": p.Items}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func validateArguments(schema *gojsonschema.Schema, args map[string]any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("invalid arguments: " + strings.Join(msgs, "; "))
}
