package liveproxy

import (
	"fmt"
	"reflect"
)

// fnPtr returns the entry point address of a func value, used as an
// approximate identity for off()'s "remove the handler passed to on()"
// contract. Comparing func values directly is illegal in Go.
func fnPtr(f func(any)) uintptr {
	if f == nil {
		return 0
	}
	return reflect.ValueOf(f).Pointer()
}

// panicErr normalizes a recover() value into an error.
func panicErr(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
