package vkdevice

import "errors"

var (
	ErrUnknownObject  = errors.New("unknown object")
	ErrUnsupported    = errors.New("command not supported by this driver binding")
	ErrLabelUnderflow = errors.New("end label without matching begin")
)
