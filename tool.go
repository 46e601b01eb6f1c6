package gonewton

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ============================================================
// Session storage contract
// ============================================================

// SessionStore isolates sessions by ID. Update runs fn with exclusive access
// to the session (creating it when missing) and returns a copy of the result;
// if fn returns an error nothing is stored.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// ============================================================
// MCP Tool Interface
// ============================================================

type ToolRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

type ToolResponse struct {
	Result interface{} `json:"result,omitempty"`
	LaTeX  string      `json:"latex,omitempty"`
	String string      `json:"string,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// StepView is the wire form of a step outcome plus the session it left behind.
type StepView struct {
	Session    string   `json:"session"`
	Kind       StepKind `json:"kind"`
	X          float64  `json:"x"`
	FX         float64  `json:"fx"`
	Iterations int      `json:"iterations"`
	Message    string   `json:"message"`
	History    []Point  `json:"history"`
}

// StateView is the wire form of a session for display.
type StateView struct {
	Session    string   `json:"session"`
	Iterations int      `json:"iterations"`
	History    []Point  `json:"history"`
	Log        []string `json:"log"`
	Function   string   `json:"f,omitempty"`
	Derivative string   `json:"df,omitempty"`
}

func NewStateView(s *Session) StateView {
	h := s.History
	if h == nil {
		h = []Point{}
	}
	return StateView{
		Session:    s.ID,
		Iterations: s.Iterations,
		History:    h,
		Log:        s.Log(),
		Function:   s.Function,
		Derivative: s.Derivative,
	}
}

// Dispatcher routes tool calls to the kernel and the session store.
type Dispatcher struct {
	Store    SessionStore
	Defaults Params
	Plot     PlotOptions
	NewID    func() string
}

func NewDispatcher(store SessionStore, defaults Params, plot PlotOptions) *Dispatcher {
	return &Dispatcher{Store: store, Defaults: defaults, Plot: plot, NewID: uuid.NewString}
}

type toolParams map[string]interface{}

func (p toolParams) str(key string) (string, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("param %s must be a string", key)
	}
	return s, true, nil
}

func (p toolParams) requireStr(key string) (string, error) {
	s, ok, err := p.str(key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", fmt.Errorf("missing param: %s", key)
	}
	return s, nil
}

// expr reads an expression given either as text or as the object form the
// parse tool returns, and yields its text.
func (p toolParams) expr(key string) (string, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case map[string]interface{}:
		e, err := FromJSON(t)
		if err != nil {
			return "", false, fmt.Errorf("param %s: %w", key, err)
		}
		return e.String(), true, nil
	}
	return "", false, fmt.Errorf("param %s must be a string or an expression object", key)
}

func (p toolParams) requireExpr(key string) (string, error) {
	s, ok, err := p.expr(key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", fmt.Errorf("missing param: %s", key)
	}
	return s, nil
}

func (p toolParams) num(key string) (float64, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("param %s must be a number", key)
		}
		return f, true, nil
	}
	return 0, false, fmt.Errorf("param %s must be a number", key)
}

// params merges request values over the dispatcher defaults. Supplying f
// without df means the derivative is derived from f.
func (d *Dispatcher) params(p toolParams) (Params, error) {
	out := d.Defaults
	f, hasF, err := p.expr("f")
	if err != nil {
		return out, err
	}
	df, hasDF, err := p.expr("df")
	if err != nil {
		return out, err
	}
	if hasF {
		out.Function = f
		out.Derivative = ""
	}
	if hasDF {
		out.Derivative = df
	}
	if v, ok, err := p.num("x0"); err != nil {
		return out, err
	} else if ok {
		out.X0 = v
	}
	if v, ok, err := p.num("tol"); err != nil {
		return out, err
	} else if ok {
		out.Tolerance = v
	}
	if v, ok, err := p.num("max_iter"); err != nil {
		return out, err
	} else if ok {
		if v != float64(int(v)) {
			return out, fmt.Errorf("param max_iter must be an integer")
		}
		out.MaxIterations = int(v)
	}
	return out, nil
}

// Handle executes one tool call. Failures are reported in ToolResponse.Error.
func (d *Dispatcher) Handle(ctx context.Context, req ToolRequest) ToolResponse {
	resp, err := d.Call(ctx, req)
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// Call executes one tool call and returns its failure as an error, so callers
// can match sentinels such as ErrSessionNotFound. A rejected newton_step
// still carries its StepView in the response.
func (d *Dispatcher) Call(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	p := toolParams(req.Params)

	switch req.Tool {
	case "evaluate":
		text, err := p.requireExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		x, ok, err := p.num("x")
		if err != nil {
			return ToolResponse{}, err
		}
		if !ok {
			return ToolResponse{}, fmt.Errorf("missing param: x")
		}
		ev, err := Compile(text)
		if err != nil {
			return ToolResponse{}, err
		}
		v, err := ev.Eval(x)
		if err != nil {
			return ToolResponse{}, err
		}
		return ToolResponse{Result: map[string]float64{"value": v}, String: ev.String(), LaTeX: ev.LaTeX()}, nil

	case "derive":
		text, err := p.requireExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		e, err := Parse(text)
		if err != nil {
			return ToolResponse{}, err
		}
		de := Diff(e)
		return ToolResponse{Result: map[string]string{"derivative": de.String()}, String: de.String(), LaTeX: de.LaTeX()}, nil

	case "parse":
		text, err := p.requireExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		e, err := Parse(text)
		if err != nil {
			return ToolResponse{}, err
		}
		return ToolResponse{Result: ToMap(e), String: e.String(), LaTeX: e.LaTeX()}, nil

	case "newton_step":
		params, err := d.params(p)
		if err != nil {
			return ToolResponse{}, err
		}
		id, _, err := p.str("session")
		if err != nil {
			return ToolResponse{}, err
		}
		if id == "" {
			id = d.NewID()
		}
		var res StepResult
		sess, err := d.Store.Update(ctx, id, func(s *Session) error {
			res = s.Advance(params)
			return nil
		})
		if err != nil {
			return ToolResponse{}, err
		}
		view := StepView{
			Session:    sess.ID,
			Kind:       res.Kind,
			X:          res.X,
			FX:         res.FX,
			Iterations: sess.Iterations,
			Message:    res.Message(),
			History:    NewStateView(sess).History,
		}
		return ToolResponse{Result: view, String: res.Message()}, res.Err

	case "newton_reset":
		id, err := p.requireStr("session")
		if err != nil {
			return ToolResponse{}, err
		}
		// Update creates missing sessions; a reset must not.
		if _, err := d.Store.Get(ctx, id); err != nil {
			return ToolResponse{}, err
		}
		sess, err := d.Store.Update(ctx, id, func(s *Session) error {
			s.Reset()
			return nil
		})
		if err != nil {
			return ToolResponse{}, err
		}
		return ToolResponse{Result: NewStateView(sess)}, nil

	case "newton_state":
		id, err := p.requireStr("session")
		if err != nil {
			return ToolResponse{}, err
		}
		sess, err := d.Store.Get(ctx, id)
		if err != nil {
			return ToolResponse{}, err
		}
		return ToolResponse{Result: NewStateView(sess)}, nil

	case "newton_plot":
		params, err := d.params(p)
		if err != nil {
			return ToolResponse{}, err
		}
		var history []Point
		if id, ok, err := p.str("session"); err != nil {
			return ToolResponse{}, err
		} else if ok && id != "" {
			sess, err := d.Store.Get(ctx, id)
			if err != nil {
				return ToolResponse{}, err
			}
			history = sess.History
			// Without an explicit f, draw the curve the session stepped on.
			_, hasF, _ := p.expr("f")
			_, hasDF, _ := p.expr("df")
			if !hasF && sess.Function != "" {
				params.Function = sess.Function
				if !hasDF {
					params.Derivative = sess.Derivative
				}
			}
		}
		data, err := BuildPlot(params.Function, params.Derivative, history, d.Plot)
		if err != nil {
			return ToolResponse{}, err
		}
		return ToolResponse{Result: data}, nil

	case "mcp_spec":
		var spec interface{}
		if err := json.Unmarshal([]byte(MCPToolSpec()), &spec); err != nil {
			return ToolResponse{}, err
		}
		return ToolResponse{Result: spec}, nil
	}
	return ToolResponse{}, fmt.Errorf("unknown tool: %s", req.Tool)
}

// ============================================================
// MCP spec
// ============================================================

func MCPToolSpec() string {
	vocab := fmt.Sprintf(" Expressions are text in x or a parse result; functions: %s; constants: %s.",
		strings.Join(Functions(), ", "), strings.Join(Constants(), ", "))
	stepProps := map[string]string{"session": "string", "f": "expr", "df": "expr", "x0": "number", "tol": "number", "max_iter": "integer"}
	tools := []map[string]interface{}{
		ts("evaluate", "Evaluate an expression in x at a point."+vocab, []string{"expr", "x"}, map[string]string{"expr": "expr", "x": "number"}),
		ts("derive", "Symbolic derivative d/dx of an expression."+vocab, []string{"expr"}, map[string]string{"expr": "expr"}),
		ts("parse", "Parse an expression and return its syntax tree."+vocab, []string{"expr"}, map[string]string{"expr": "expr"}),
		ts("newton_step", "Advance a Newton's-method session by one step. Omitting session starts a new one; omitting df derives it from f."+vocab, []string{}, stepProps),
		ts("newton_reset", "Clear an existing session's iteration count and history", []string{"session"}, map[string]string{"session": "string"}),
		ts("newton_state", "Return a session's iteration count, history and log", []string{"session"}, map[string]string{"session": "string"}),
		ts("newton_plot", "Curve samples, visited points and tangent segments for plotting. With a session and no f, the session's last f and df are drawn", []string{}, map[string]string{"session": "string", "f": "expr", "df": "expr"}),
		ts("mcp_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	spec := map[string]interface{}{"tools": tools}
	b, _ := json.MarshalIndent(spec, "", "  ")
	return string(b)
}

// ts builds one tool entry. The "expr" pseudo-type accepts text or an
// expression object.
func ts(name, description string, required []string, props map[string]string) map[string]interface{} {
	properties := map[string]interface{}{}
	for k, typ := range props {
		if typ == "expr" {
			properties[k] = map[string]interface{}{"type": []string{"string", "object"}}
			continue
		}
		properties[k] = map[string]interface{}{"type": typ}
	}
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"inputSchema": map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
