package vm

import (
	"corevm/internal/errors"
	"corevm/internal/value"
)

// importModule implements ImportModule, delegating resolution, caching,
// and circular-import detection to the injected module.Loader (spec.md
// §6). A VM constructed without a module.Source can still run code that
// never imports anything.
func (vm *VM) importModule(name string) (value.Value, error) {
	if vm.modules == nil {
		return value.Nil(), errors.New(errors.ImportFailure, "no module source configured for import %q", name)
	}
	return vm.modules.Load(name)
}
