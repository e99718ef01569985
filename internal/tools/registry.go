// Package tools implements the tool registry: named, schema-typed
// functions invoked by the orchestrator and delegate handlers. Tools
// are pure with respect to the rest of the system; callers fold results
// into session memory themselves.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/dettyhq/detty/pkg/models"
)

// ArgType is the primitive type of a tool argument.
type ArgType string

const (
	// ArgString is a string argument.
	ArgString ArgType = "string"
	// ArgInt is an integer argument. JSON numbers are accepted.
	ArgInt ArgType = "integer"
)

// ArgSpec declares one argument of a tool.
type ArgSpec struct {
	// Name is the argument name as it appears in the JSON mapping.
	Name string
	// Type is the primitive type.
	Type ArgType
	// Required marks arguments that must be present.
	Required bool
	// Description documents the argument for the reasoning engine.
	Description string
	// Enum restricts string arguments to a fixed value set, if non-nil.
	Enum []string
}

// Spec declares a tool's name, purpose, and argument schema.
type Spec struct {
	Name        string
	Description string
	Args        []ArgSpec
}

// Func is a tool implementation. Arguments arrive validated against the
// spec; the returned payload is a JSON object, or a *models.Failure.
type Func func(ctx context.Context, args map[string]any) (json.RawMessage, error)

// Registry holds the registered tools. It is stateless after
// construction and safe for concurrent use.
type Registry struct {
	specs map[string]Spec
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]Spec),
		funcs: make(map[string]Func),
	}
}

// Register adds a tool. Registering a duplicate name panics: the tool
// set is fixed at startup and a collision is a programming error.
func (r *Registry) Register(spec Spec, fn Func) {
	if _, exists := r.specs[spec.Name]; exists {
		panic(fmt.Sprintf("tools: duplicate registration of %q", spec.Name))
	}
	r.specs[spec.Name] = spec
	r.funcs[spec.Name] = fn
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Spec returns the spec for a tool, if registered.
func (r *Registry) Spec(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Subset returns a registry restricted to the named tools. Unknown
// names are an error so a role card cannot silently reference a tool
// that does not exist.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		spec, ok := r.specs[name]
		if !ok {
			return nil, fmt.Errorf("subset: unknown tool %q", name)
		}
		sub.specs[name] = spec
		sub.funcs[name] = r.funcs[name]
	}
	return sub, nil
}

// Invoke validates args against the tool's schema and calls it.
// A missing or mistyped required argument fails fast with
// FailInvalidArgument and must not be retried by the caller.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs json.RawMessage) (json.RawMessage, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, models.NewFailure(models.FailInvalidArgument, fmt.Sprintf("unknown tool %q", name))
	}
	spec := r.specs[name]

	args, err := decodeArgs(rawArgs)
	if err != nil {
		return nil, models.NewFailure(models.FailInvalidArgument, err.Error())
	}
	if err := validateArgs(spec, args); err != nil {
		return nil, err
	}

	return fn(ctx, args)
}

// decodeArgs parses the raw JSON argument mapping.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// validateArgs checks required presence, primitive types, and enum
// membership. Integer arguments are normalized to int in place.
func validateArgs(spec Spec, args map[string]any) error {
	for _, arg := range spec.Args {
		val, present := args[arg.Name]
		if !present {
			if arg.Required {
				return models.NewFailure(models.FailInvalidArgument,
					fmt.Sprintf("%s: missing required argument %q", spec.Name, arg.Name))
			}
			continue
		}

		switch arg.Type {
		case ArgString:
			s, ok := val.(string)
			if !ok {
				return models.NewFailure(models.FailInvalidArgument,
					fmt.Sprintf("%s: argument %q must be a string", spec.Name, arg.Name))
			}
			if len(arg.Enum) > 0 && !contains(arg.Enum, s) {
				return models.NewFailure(models.FailInvalidArgument,
					fmt.Sprintf("%s: argument %q must be one of %v", spec.Name, arg.Name, arg.Enum))
			}
		case ArgInt:
			switch n := val.(type) {
			case float64:
				if n != float64(int(n)) {
					return models.NewFailure(models.FailInvalidArgument,
						fmt.Sprintf("%s: argument %q must be an integer", spec.Name, arg.Name))
				}
				args[arg.Name] = int(n)
			case int:
			default:
				return models.NewFailure(models.FailInvalidArgument,
					fmt.Sprintf("%s: argument %q must be an integer", spec.Name, arg.Name))
			}
		}
	}
	return nil
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// AnthropicTools exports the registry's schemas in the shape the
// Anthropic Messages API expects.
func (r *Registry) AnthropicTools() []anthropic.ToolUnionParam {
	names := r.Names()
	out := make([]anthropic.ToolUnionParam, 0, len(names))
	for _, name := range names {
		spec := r.specs[name]
		props := make(map[string]interface{}, len(spec.Args))
		var required []string
		for _, arg := range spec.Args {
			prop := map[string]interface{}{
				"type":        string(arg.Type),
				"description": arg.Description,
			}
			if len(arg.Enum) > 0 {
				prop["enum"] = arg.Enum
			}
			props[arg.Name] = prop
			if arg.Required {
				required = append(required, arg.Name)
			}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		})
	}
	return out
}
