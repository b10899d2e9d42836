// Package engine evaluates modeling scripts. A script is zygomys Lisp with a
// handful of builtins (box, cylinder, sphere, vec3, translate, show) and
// yields the named shapes it showed, ready for tessellation.
//
// This is the lightweight stand-in for a full CAD kernel: it builds exact
// primitives where the STEP approximator can only guess.
package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/sirupsen/logrus"

	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/shape"
	"github.com/chazu/stepview/pkg/tessellate"
)

// ErrSuperseded is returned when a newer evaluation started before this one finished.
var ErrSuperseded = errors.New("evaluation superseded by newer request")

// ErrTimeout is returned when an evaluation exceeds its time limit.
var ErrTimeout = errors.New("evaluation timed out")

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Program is the output of a successful evaluation: the shown parts in the
// order the script showed them.
type Program struct {
	Parts []tessellate.Part `json:"parts"`
}

// Lookup returns the shape shown under name.
func (p *Program) Lookup(name string) (shape.Descriptor, bool) {
	for _, part := range p.Parts {
		if part.Name == name {
			return part.Shape, true
		}
	}
	return shape.Descriptor{}, false
}

// Engine wraps the zygomys interpreter.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	// Timeout bounds a single evaluation. Zero means EvalTimeout.
	Timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{Timeout: EvalTimeout}
}

// Evaluate runs a script and returns the parts it showed.
//
// Return semantics:
//   - On success: returns program + nil errors + nil error
//   - On parse/eval failure: returns nil program + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Program, []EvalError, error) {
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

		p, evalErrs, err := e.evaluate(source)
		ch <- evalResult{program: p, errors: evalErrs, err: err}
	}()

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	p, evalErrs, err := waitWithTimeout(ch, gen, timeout, &e.mu, &e.generation)
	log := logger.Log.WithFields(logrus.Fields{"generation": gen})
	switch {
	case err != nil:
		log.WithError(err).Warn("engine: evaluation failed")
	case len(evalErrs) > 0:
		log.WithField("errors", len(evalErrs)).Debug("engine: script errors")
	default:
		log.WithField("parts", len(p.Parts)).Debug("engine: evaluation complete")
	}
	return p, evalErrs, err
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Program, []EvalError, error) {
	p := &Program{}
	// Empty source is a valid program that shows nothing.
	if strings.TrimSpace(source) == "" {
		return p, nil, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, p)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return p, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
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
