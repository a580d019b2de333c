package main

import (
	"reflect"
	"strconv"

	"github.com/alecthomas/kong"
)

// intMapper accepts decimal, 0x hex and 0b binary integers, since
// receiver addresses are often printed in hex on DIP switch tables.
type intMapper struct{}

func (intMapper) Decode(ctx *kong.DecodeContext, target reflect.Value) error {
	var value string
	if err := ctx.Scan.PopValueInto("int", &value); err != nil {
		return err
	}
	i, err := strconv.ParseInt(value, 0, 64)
	if err != nil {
		return err
	}
	target.SetInt(i)
	return nil
}
