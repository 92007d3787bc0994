package expr

import (
	"fmt"
	"math"
)

type evalState struct {
	env   Env
	funcs funcLookup
}

type funcLookup func(name string) (Func, bool)

type node interface {
	eval(st *evalState) (any, error)
}

type literalNode struct{ value any }

func (n literalNode) eval(*evalState) (any, error) { return n.value, nil }

type identNode struct{ name string }

func (n identNode) eval(st *evalState) (any, error) {
	if st.env == nil {
		return nil, nil
	}
	value, _ := st.env.Lookup(n.name)
	return value, nil
}

type memberNode struct {
	object node
	name   string
}

func (n memberNode) eval(st *evalState) (any, error) {
	obj, err := n.object.eval(st)
	if err != nil {
		return nil, err
	}
	value, _ := Member(obj, n.name)
	return value, nil
}

type indexNode struct {
	object node
	index  node
}

func (n indexNode) eval(st *evalState) (any, error) {
	obj, err := n.object.eval(st)
	if err != nil {
		return nil, err
	}
	idx, err := n.index.eval(st)
	if err != nil {
		return nil, err
	}
	value, _ := Index(obj, idx)
	return value, nil
}

type callNode struct {
	name string
	args []node
}

func (n callNode) eval(st *evalState) (any, error) {
	fn, ok := n.resolve(st)
	if !ok {
		return nil, fmt.Errorf("expr: unknown function %q", n.name)
	}
	args := make([]any, len(n.args))
	for i, arg := range n.args {
		value, err := arg.eval(st)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	out, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("expr: call %s: %w", n.name, err)
	}
	return out, nil
}

// Scope values typed as Func are explicit capability grants and shadow
// registered functions of the same name.
func (n callNode) resolve(st *evalState) (Func, bool) {
	if st.env != nil {
		if value, ok := st.env.Lookup(n.name); ok {
			switch fn := value.(type) {
			case Func:
				return fn, true
			case func(args ...any) (any, error):
				return fn, true
			}
		}
	}
	if st.funcs != nil {
		return st.funcs(n.name)
	}
	return nil, false
}

type unaryNode struct {
	op      string
	operand node
}

func (n unaryNode) eval(st *evalState) (any, error) {
	value, err := n.operand.eval(st)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "!":
		return !Truthy(value), nil
	case "-":
		num, ok := ToNumber(value)
		if !ok {
			return math.NaN(), nil
		}
		return -num, nil
	case "+":
		num, ok := ToNumber(value)
		if !ok {
			return math.NaN(), nil
		}
		return num, nil
	}
	return nil, fmt.Errorf("expr: unknown unary operator %q", n.op)
}

type logicalNode struct {
	op          string
	left, right node
}

func (n logicalNode) eval(st *evalState) (any, error) {
	left, err := n.left.eval(st)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "&&":
		if !Truthy(left) {
			return left, nil
		}
	case "||":
		if Truthy(left) {
			return left, nil
		}
	case "??":
		if left != nil {
			return left, nil
		}
	}
	return n.right.eval(st)
}

type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(st *evalState) (any, error) {
	left, err := n.left.eval(st)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(st)
	if err != nil {
		return nil, err
	}
	return binary(n.op, left, right)
}

type ternaryNode struct {
	cond, then, otherwise node
}

func (n ternaryNode) eval(st *evalState) (any, error) {
	cond, err := n.cond.eval(st)
	if err != nil {
		return nil, err
	}
	if Truthy(cond) {
		return n.then.eval(st)
	}
	return n.otherwise.eval(st)
}

type arrayNode struct{ items []node }

func (n arrayNode) eval(st *evalState) (any, error) {
	out := make([]any, len(n.items))
	for i, item := range n.items {
		value, err := item.eval(st)
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

type objectNode struct {
	keys   []string
	values []node
}

func (n objectNode) eval(st *evalState) (any, error) {
	out := make(map[string]any, len(n.keys))
	for i, key := range n.keys {
		value, err := n.values[i].eval(st)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

func binary(op string, left, right any) (any, error) {
	switch op {
	case "==":
		return LooseEqual(left, right), nil
	case "!=":
		return !LooseEqual(left, right), nil
	case "===":
		return StrictEqual(left, right), nil
	case "!==":
		return !StrictEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return compare(op, left, right), nil
	case "+":
		if isString(left) || isString(right) {
			return ToString(left) + ToString(right), nil
		}
		return arithmetic(op, left, right), nil
	case "-", "*", "/", "%":
		return arithmetic(op, left, right), nil
	}
	return nil, fmt.Errorf("expr: unknown operator %q", op)
}

func arithmetic(op string, left, right any) float64 {
	a, okA := ToNumber(left)
	b, okB := ToNumber(right)
	if !okA || !okB {
		return math.NaN()
	}
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	case "%":
		return math.Mod(a, b)
	}
	return math.NaN()
}

func compare(op string, left, right any) bool {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case "<":
				return ls < rs
			case "<=":
				return ls <= rs
			case ">":
				return ls > rs
			default:
				return ls >= rs
			}
		}
	}
	a, okA := ToNumber(left)
	b, okB := ToNumber(right)
	if !okA || !okB {
		return false
	}
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}
