package di

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// callable 封装反射调用的细节，提前校验签名并缓存类型信息。
// 约定：第一个返回值是实例，最后一个返回值可以是 error。
type callable struct {
	fn      reflect.Value
	fnType  reflect.Type
	numOut  int
	hasErr  bool
	outType reflect.Type
}

func newCallable(fn any) (*callable, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("di: 期望函数，得到 %T", fn)
	}
	t := v.Type()
	if t.NumOut() == 0 {
		return nil, fmt.Errorf("di: 构造函数/工厂必须至少返回一个值")
	}
	c := &callable{fn: v, fnType: t, numOut: t.NumOut()}
	if t.NumOut() > 1 && t.Out(t.NumOut()-1).Implements(errorType) {
		c.hasErr = true
	}
	c.outType = t.Out(0)
	return c, nil
}

func (c *callable) numIn() int {
	return c.fnType.NumIn()
}

func (c *callable) in(i int) reflect.Type {
	return c.fnType.In(i)
}

func (c *callable) out() reflect.Type {
	return c.outType
}

// Invoke 调用函数并按签名注入参数。
// 每个参数在同一个根上下文中解析；函数的最后一个返回值若是 error 则透传。
func Invoke(injector *Injector, fn any) error {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return fmt.Errorf("di: Invoke 期望函数，得到 %T", fn)
	}
	t := v.Type()

	ctx := newInjectionContext(injector)
	exit := injector.cell.Enter(ctx)
	defer exit()

	args := make([]reflect.Value, t.NumIn())
	for i := range args {
		dep, err := ctx.Resolve(KeyOf(t.In(i)))
		if err != nil {
			return err
		}
		args[i] = argValue(dep, t.In(i))
	}

	results := v.Call(args)
	if t.NumOut() > 0 && t.Out(t.NumOut()-1).Implements(errorType) {
		if last := results[len(results)-1]; !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}

// invoke 执行调用并按约定处理返回值。
func (c *callable) invoke(args []reflect.Value) (any, error) {
	results := c.fn.Call(args)

	if c.hasErr {
		last := results[len(results)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}

	first := results[0]
	if first.Kind() == reflect.Pointer || first.Kind() == reflect.Interface {
		if first.IsNil() {
			return nil, fmt.Errorf("di: 构造函数返回了 nil 实例")
		}
	}
	return first.Interface(), nil
}
