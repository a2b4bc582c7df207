package contracts

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ErrEncoding is returned when call arguments do not match the ABI exactly.
var ErrEncoding = errors.New("encoding error")

// Encoder builds call payloads for one contract ABI. Arguments must already carry the
// Go type go-ethereum maps each ABI type to; nothing is converted on the caller's behalf.
type Encoder struct {
	contract Name
	abi      abi.ABI
}

func NewEncoder(contract Compiled) *Encoder {
	return &Encoder{contract: contract.Name, abi: contract.ABI}
}

// Encode returns selector || abi.encode(args) for method fn.
func (e *Encoder) Encode(fn string, args ...any) ([]byte, error) {
	method, ok := e.abi.Methods[fn]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no method %q", ErrEncoding, e.contract, fn)
	}

	if err := checkArguments(method.Inputs, args); err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrEncoding, e.contract, method.Sig, err)
	}

	payload, err := e.abi.Pack(fn, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrEncoding, e.contract, method.Sig, err)
	}

	return payload, nil
}

// EncodeConstructor packs constructor arguments, to be appended to creation bytecode.
func (e *Encoder) EncodeConstructor(args ...any) ([]byte, error) {
	if err := checkArguments(e.abi.Constructor.Inputs, args); err != nil {
		return nil, fmt.Errorf("%w: %s constructor: %w", ErrEncoding, e.contract, err)
	}

	payload, err := e.abi.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s constructor: %w", ErrEncoding, e.contract, err)
	}

	return payload, nil
}

func checkArguments(inputs abi.Arguments, args []any) error {
	if len(args) != len(inputs) {
		return fmt.Errorf("expected %d arguments, got %d", len(inputs), len(args))
	}

	for i, input := range inputs {
		if args[i] == nil {
			return fmt.Errorf("argument %d (%s %s) is nil", i, input.Type.String(), input.Name)
		}
		if err := checkValue(input.Type, reflect.ValueOf(args[i])); err != nil {
			return fmt.Errorf("argument %d (%s %s): %w", i, input.Type.String(), input.Name, err)
		}
	}

	return nil
}

// checkValue matches got against want by type and rejects nil pointers anywhere inside it.
// Nil slices are accepted and pack as empty.
func checkValue(want abi.Type, got reflect.Value) error {
	switch want.T {
	case abi.SliceTy:
		if got.Kind() != reflect.Slice {
			return fmt.Errorf("want slice, got %s", got.Type())
		}
		if err := checkType(*want.Elem, got.Type().Elem()); err != nil {
			return err
		}
		for i := 0; i < got.Len(); i++ {
			if err := checkValue(*want.Elem, got.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil

	case abi.ArrayTy:
		if got.Kind() != reflect.Array || got.Len() != want.Size {
			return fmt.Errorf("want array of %d, got %s", want.Size, got.Type())
		}
		for i := 0; i < got.Len(); i++ {
			if err := checkValue(*want.Elem, got.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil

	case abi.TupleTy:
		if err := checkType(want, got.Type()); err != nil {
			return err
		}
		for i, elem := range want.TupleElems {
			fieldName := abi.ToCamelCase(want.TupleRawNames[i])
			if err := checkValue(*elem, got.FieldByName(fieldName)); err != nil {
				return fmt.Errorf("field %s: %w", fieldName, err)
			}
		}
		return nil
	}

	if err := checkType(want, got.Type()); err != nil {
		return err
	}
	if got.Kind() == reflect.Ptr && got.IsNil() {
		return fmt.Errorf("nil %s", got.Type())
	}

	return nil
}

func checkType(want abi.Type, got reflect.Type) error {
	switch want.T {
	case abi.SliceTy:
		if got.Kind() != reflect.Slice {
			return fmt.Errorf("want slice, got %s", got)
		}
		return checkType(*want.Elem, got.Elem())

	case abi.ArrayTy:
		if got.Kind() != reflect.Array || got.Len() != want.Size {
			return fmt.Errorf("want array of %d, got %s", want.Size, got)
		}
		return checkType(*want.Elem, got.Elem())

	case abi.TupleTy:
		if got.Kind() != reflect.Struct {
			return fmt.Errorf("want struct, got %s", got)
		}
		if got.NumField() != len(want.TupleElems) {
			return fmt.Errorf("want %d struct fields, got %d", len(want.TupleElems), got.NumField())
		}
		for i, elem := range want.TupleElems {
			fieldName := abi.ToCamelCase(want.TupleRawNames[i])
			field, ok := got.FieldByName(fieldName)
			if !ok {
				return fmt.Errorf("struct %s has no field %s", got, fieldName)
			}
			if err := checkType(*elem, field.Type); err != nil {
				return fmt.Errorf("field %s: %w", fieldName, err)
			}
		}
		return nil
	}

	if got != want.GetType() {
		return fmt.Errorf("want %s, got %s", want.GetType(), got)
	}

	return nil
}
