package gonewton

import (
	"math"
	"sort"
	"strings"
)

// VarName is the only free variable an expression may reference.
const VarName = "x"

// Namespace prefixes accepted in front of whitelisted names, so formulas
// written as np.sin(x) or math.log(x) keep working.
var namespaces = []string{"np.", "numpy.", "math."}

var constants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": 2 * math.Pi,
}

var functions = map[string]func(float64) (float64, error){
	"sin":   wrap(math.Sin),
	"cos":   wrap(math.Cos),
	"tan":   wrap(math.Tan),
	"sinh":  wrap(math.Sinh),
	"cosh":  wrap(math.Cosh),
	"tanh":  wrap(math.Tanh),
	"atan":  wrap(math.Atan),
	"exp":   wrap(math.Exp),
	"abs":   wrap(math.Abs),
	"floor": wrap(math.Floor),
	"ceil":  wrap(math.Ceil),
	"asin": func(v float64) (float64, error) {
		if v < -1 || v > 1 {
			return 0, domainError("asin(%g) is outside [-1, 1]", v)
		}
		return math.Asin(v), nil
	},
	"acos": func(v float64) (float64, error) {
		if v < -1 || v > 1 {
			return 0, domainError("acos(%g) is outside [-1, 1]", v)
		}
		return math.Acos(v), nil
	},
	"log":   logOf("log", math.Log),
	"ln":    logOf("ln", math.Log),
	"log10": logOf("log10", math.Log10),
	"log2":  logOf("log2", math.Log2),
	"sqrt": func(v float64) (float64, error) {
		if v < 0 {
			return 0, domainError("sqrt of negative number %g", v)
		}
		return math.Sqrt(v), nil
	},
	"sign": func(v float64) (float64, error) {
		switch {
		case v > 0:
			return 1, nil
		case v < 0:
			return -1, nil
		}
		return 0, nil
	},
}

func wrap(f func(float64) float64) func(float64) (float64, error) {
	return func(v float64) (float64, error) { return f(v), nil }
}

func logOf(name string, f func(float64) float64) func(float64) (float64, error) {
	return func(v float64) (float64, error) {
		if v <= 0 {
			return 0, domainError("%s of non-positive number %g", name, v)
		}
		return f(v), nil
	}
}

// canonicalName strips an accepted namespace prefix.
func canonicalName(name string) string {
	for _, ns := range namespaces {
		if strings.HasPrefix(name, ns) {
			return name[len(ns):]
		}
	}
	return name
}

// IsFunction reports whether name (optionally namespaced) is a whitelisted function.
func IsFunction(name string) bool {
	_, ok := functions[canonicalName(name)]
	return ok
}

// IsConstant reports whether name (optionally namespaced) is a whitelisted constant.
func IsConstant(name string) bool {
	_, ok := constants[canonicalName(name)]
	return ok
}

// Functions lists the whitelisted function names in sorted order.
func Functions() []string {
	out := make([]string, 0, len(functions))
	for name := range functions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Constants lists the whitelisted constant names in sorted order.
func Constants() []string {
	out := make([]string, 0, len(constants))
	for name := range constants {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func ConstOf(name string) (*Const, bool) {
	v, ok := constants[canonicalName(name)]
	if !ok {
		return nil, false
	}
	return &Const{name: canonicalName(name), val: v}, true
}
