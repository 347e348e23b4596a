// Package engine provides the Lisp evaluation engine for fasten scripts.
// It wraps zygomys in a sandboxed environment and produces a Document of
// bodies and fasteners from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/document"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning is a problem in a script that does not stop evaluation,
// e.g. a fastener attached to an element no body defines.
type EvalWarning struct {
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Message string `json:"message"`
	Object  string `json:"object,omitempty"`
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Document *document.Document
	Errors   []EvalError
	Warnings []EvalWarning
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	reg        *catalog.Registry
	timeout    time.Duration
	matchOuter bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the hard limit for one evaluation.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithMatchOuterDefault sets match-outer for fasteners that do not say.
func WithMatchOuterDefault(v bool) Option {
	return func(e *Engine) { e.matchOuter = v }
}

// NewEngine creates an engine validating fastener types against reg
// (catalog.Default() when nil).
func NewEngine(reg *catalog.Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = catalog.Default()
	}
	e := &Engine{reg: reg, timeout: EvalTimeout}
	for _, o := range opts {
		o(e)
	}
	if e.timeout <= 0 {
		e.timeout = EvalTimeout
	}
	return e
}

// Evaluate runs source and returns the document it describes. Fasteners
// in the document have not been recomputed; run a restoring pass before
// the first recompute.
//
// Return semantics:
//   - On success: returns document + nil errors + nil error
//   - On parse/eval failure: returns nil document + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*document.Document, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		doc, evalErrs, err := e.evaluate(source)
		ch <- evalResult{doc: doc, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
}

func (e *Engine) evaluate(source string) (*document.Document, []EvalError, error) {
	doc := document.New()
	if strings.TrimSpace(source) == "" {
		return doc, nil, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, &scope{doc: doc, reg: e.reg, matchOuter: e.matchOuter})

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return doc, nil, nil
}

// Warnings reports fasteners whose attachment does not resolve in doc.
// Such fasteners still recompute, unattached and at their default size.
func Warnings(doc *document.Document) []EvalWarning {
	if doc == nil {
		return nil
	}
	var out []EvalWarning
	for _, inst := range doc.Fasteners() {
		ref := inst.Props.BaseObject
		if ref == nil {
			continue
		}
		if _, err := doc.Feature(*ref); err != nil {
			out = append(out, EvalWarning{Message: err.Error(), Object: inst.Name})
		}
	}
	return out
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting line information when the message carries it.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
