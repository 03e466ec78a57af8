package sim

// HookPos names a place where hooks fire.
type HookPos struct {
	Name string
}

// HookCtx describes one hook invocation. Item is the object the hook fired
// for, such as an event or a buffered element. Detail carries extra
// position specific data.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable is anything hooks can be attached to.
type Hookable interface {
	AcceptHook(hook Hook)
}

// Engine hook positions, fired around every handled event.
var (
	HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}
	HookPosAfterEvent  = &HookPos{Name: "AfterEvent"}
)

// Hook observes a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase stores hooks. Embed it to implement Hookable.
type HookableBase struct {
	Hooks []Hook
}

// AcceptHook appends a hook. Hooks run in the order they were accepted.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.Hooks)
}

// InvokeHook runs every hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
