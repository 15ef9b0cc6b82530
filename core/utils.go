package core

import (
	"reflect"

	"github.com/encodeous/rani/state"
)

func moduleName[T state.Module]() string {
	return reflect.TypeFor[T]().String()
}

func Get[T state.Module](s *state.State) T {
	return s.Modules[moduleName[T]()].(T)
}
