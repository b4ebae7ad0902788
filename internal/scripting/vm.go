package scripting

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

// LogEntry represents a single log message from the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// VM wraps a goja runtime with sandbox restrictions and global function injection.
type VM struct {
	runtime *goja.Runtime
	mu      sync.Mutex

	// Log buffer visible to callers.
	logs    []LogEntry
	logsMu  sync.Mutex
	maxLogs int

	// stopRequested is set when the script calls stop(). It is read while a
	// script call holds mu, so it cannot share that lock.
	stopRequested atomic.Bool
}

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 1 * time.Second
)

// Script hooks looked up by the engine.
const (
	fnRound       = "round"
	fnAfterRound  = "afterround"
	fnChooseSkill = "chooseskill"
)

// NewVM creates a sandboxed goja runtime with global functions injected.
func NewVM() *VM {
	vm := &VM{
		runtime: goja.New(),
		maxLogs: 500,
	}
	vm.injectGlobalFunctions()
	injectConstants(vm.runtime)
	return vm
}

// injectGlobalFunctions registers log, console.log, stop and sleep.
func (vm *VM) injectGlobalFunctions() {
	vm.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		vm.appendLog(strings.Join(parts, " "))
		return goja.Undefined()
	})

	console := vm.runtime.NewObject()
	console.Set("log", vm.runtime.Get("log"))
	vm.runtime.Set("console", console)

	vm.runtime.Set("stop", func(call goja.FunctionCall) goja.Value {
		vm.stopRequested.Store(true)
		vm.runtime.Set("running", false)
		return goja.Undefined()
	})

	// sleep(ms) sets a one-off pause before the next round.
	vm.runtime.Set("sleep", func(call goja.FunctionCall) goja.Value {
		ms := 0
		if len(call.Arguments) > 0 {
			ms = int(call.Arguments[0].ToInteger())
		}
		vm.runtime.Set("sleeptime", ms)
		return goja.Undefined()
	})

	vm.runtime.Set("require", goja.Undefined())
	vm.runtime.Set("fetch", goja.Undefined())
	vm.runtime.Set("XMLHttpRequest", goja.Undefined())
	vm.runtime.Set("eval", goja.Undefined())
	vm.runtime.Set("Function", goja.Undefined())
}

func (vm *VM) appendLog(msg string) {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	if len(vm.logs) >= vm.maxLogs {
		vm.logs = vm.logs[1:]
	}
	vm.logs = append(vm.logs, LogEntry{Time: time.Now(), Message: msg})
}

// Execute runs the strategy source once to register its hooks.
func (vm *VM) Execute(source string) error {
	return vm.runWithTimeout(scriptInitTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if _, err := vm.runtime.RunString(source); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
}

// call invokes the named global function and returns its result.
func (vm *VM) call(name string, args ...any) (goja.Value, error) {
	var out goja.Value
	err := vm.runWithTimeout(scriptCallTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()

		fn, ok := goja.AssertFunction(vm.runtime.Get(name))
		if !ok {
			return fmt.Errorf("%s() function is not defined", name)
		}
		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = vm.runtime.ToValue(a)
		}
		result, err := fn(goja.Undefined(), jsArgs...)
		if err != nil {
			return fmt.Errorf("%s() error: %w", name, err)
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CallRound asks round() for the next player action.
func (vm *VM) CallRound() (string, error) {
	v, err := vm.call(fnRound)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

// CallAfterRound runs afterround(), if defined, once a round resolves.
func (vm *VM) CallAfterRound() error {
	if !vm.HasFunc(fnAfterRound) {
		return nil
	}
	_, err := vm.call(fnAfterRound)
	return err
}

// CallChooseSkill asks chooseskill(choices) for a skill id. Without the
// hook, or when it returns nothing, the level is played without a skill.
func (vm *VM) CallChooseSkill(choices []string) (string, error) {
	if !vm.HasFunc(fnChooseSkill) {
		return "", nil
	}
	list := make([]any, len(choices))
	for i, c := range choices {
		list[i] = c
	}
	v, err := vm.call(fnChooseSkill, list)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

// HasFunc reports whether the script defined a global function name.
func (vm *VM) HasFunc(name string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	_, ok := goja.AssertFunction(vm.runtime.Get(name))
	return ok
}

// IsStopRequested returns true if stop() was called from the script.
func (vm *VM) IsStopRequested() bool {
	return vm.stopRequested.Load()
}

// SetVariables pushes the current variable state into the JS runtime.
func (vm *VM) SetVariables(vars *Variables) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	injectVariables(vm.runtime, vars)
}

// SyncVariables reads mutable variables back from the JS runtime.
func (vm *VM) SyncVariables(vars *Variables) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	syncFromVM(vm.runtime, vars)
}

// TakeSleepTime returns the pending sleeptime and resets it to 0.
func (vm *VM) TakeSleepTime() time.Duration {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ms := toInt(vm.runtime.Get("sleeptime"))
	vm.runtime.Set("sleeptime", 0)
	return time.Duration(ms) * time.Millisecond
}

// GetLogs returns a copy of the current log buffer.
func (vm *VM) GetLogs() []LogEntry {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	out := make([]LogEntry, len(vm.logs))
	copy(out, vm.logs)
	return out
}

func (vm *VM) runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		// Interrupt a runaway script execution.
		vm.runtime.Interrupt("script execution timeout")
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("script timed out: %w", err)
			}
			return fmt.Errorf("script timed out")
		case <-time.After(200 * time.Millisecond):
			return fmt.Errorf("script timed out")
		}
	}
}
