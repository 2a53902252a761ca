package koperator

import "errors"

var (
	ErrUnknownPort               = errors.New("unknown port")
	ErrDuplicatePortName         = errors.New("duplicate port name")
	ErrInvalidEagerConfiguration = errors.New("invalid eager configuration")
	ErrNumericDomain             = errors.New("numeric domain error")
	ErrInvalidParameter          = errors.New("invalid parameter")
	ErrPayloadType               = errors.New("payload type mismatch")
	ErrUnknownType               = errors.New("unknown operator type")
	ErrTypeAlreadyRegistered     = errors.New("operator type already registered")
)
